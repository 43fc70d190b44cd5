package session

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/wick3dr0se/wrym/pkg/reliable"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

// State is the position of a Client in its lifecycle.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Client struct {
	cfg       ClientConfig
	logger    wlog.Logger
	transport transport.ReliableTransport
	engine    *reliable.Engine
	now       func() time.Time

	mu            sync.Mutex
	state         State
	id            uint32
	lastSent      time.Time
	lastReceived  time.Time
	lastHeartbeat time.Time
	events        eventQueue[ClientEvent]

	closeOnce sync.Once
}

// NewClient creates a client and announces it to cfg.ServerAddr. The client
// is Connecting until the server's reply arrives through Poll.
func NewClient(cfg ClientConfig) (*Client, error) {
	return newClient(cfg, time.Now)
}

func newClient(cfg ClientConfig, now func() time.Time) (*Client, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if cfg.ServerAddr == "" {
		return nil, ErrNoServerAddr
	}
	cfg = cfg.withDefaults()

	rt, engine := reliableOver(cfg.Transport, cfg.Reliable)

	c := &Client{
		cfg:       cfg,
		logger:    cfg.Logger,
		transport: rt,
		engine:    engine,
		now:       now,
		state:     StateConnecting,
		events:    eventQueue[ClientEvent]{limit: cfg.EventQueueSize},
	}

	hello := OpConnect.Frame(nil)
	if err := rt.SendReliable(cfg.ServerAddr, hello, true, ControlChannel); err != nil {
		if engine != nil {
			engine.Close()
		}
		return nil, fmt.Errorf("announce to %s: %w", cfg.ServerAddr, err)
	}
	c.lastSent = now()
	c.lastReceived = c.lastSent
	c.lastHeartbeat = c.lastSent

	c.logger.Debug("connecting", "server", cfg.ServerAddr)
	return c, nil
}

// Engine returns the interposed delivery engine, or nil if the transport is
// natively reliable.
func (c *Client) Engine() *reliable.Engine {
	return c.engine
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ID returns the identity assigned by the server. It is only valid once the
// client is connected.
func (c *Client) ID() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, c.state == StateConnected
}

// ==================================================================
// Poll loop
// ==================================================================

func (c *Client) Poll() {
	c.transport.Poll()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return
	}

	c.keepAlive()

	for c.state != StateDisconnected {
		if c.events.full() {
			return
		}
		p, ok := c.transport.Receive()
		if !ok {
			break
		}
		c.handlePacket(p)
	}

	if c.state != StateDisconnected && c.cfg.ServerTimeout > 0 &&
		c.now().Sub(c.lastReceived) > c.cfg.ServerTimeout {
		c.disconnect(ReasonTimedOut)
	}
}

// RecvEvent pops the oldest pending event.
func (c *Client) RecvEvent() (ClientEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events.pop()
}

// keepAlive sends a heartbeat when the client has been quiet, or has not
// heard from the server, for a whole interval. The server answers heartbeats
// from clients it knows and rejects the others with a Disconnect.
func (c *Client) keepAlive() {
	if c.state != StateConnected || c.cfg.KeepAliveInterval < 0 {
		return
	}

	now := c.now()
	interval := c.cfg.KeepAliveInterval
	if now.Sub(c.lastHeartbeat) < interval {
		return
	}
	if now.Sub(c.lastSent) < interval && now.Sub(c.lastReceived) < interval {
		return
	}

	if err := c.transport.Send(c.cfg.ServerAddr, OpHeartbeat.Frame(nil), transport.Unreliable); err != nil {
		c.logger.Debug("heartbeat failed", "server", c.cfg.ServerAddr, "error", err)
	}
	c.lastHeartbeat = now
	c.lastSent = now
}

func (c *Client) handlePacket(p transport.Packet) {
	if p.Addr != c.cfg.ServerAddr {
		c.logger.Debug("dropping message from unexpected address", "addr", p.Addr)
		return
	}
	c.lastReceived = c.now()

	if p.IsCloseSignal() {
		c.disconnect(ReasonTransportClosed)
		return
	}

	op, body, err := parseMessage(p.Data)
	if err != nil {
		c.logger.Debug("discarding message", "error", err)
		return
	}

	switch op {
	case OpConnect:
		id, ok := parseConnectReply(body)
		if !ok {
			c.logger.Debug("discarding connect reply without identity")
			return
		}
		if c.state == StateConnected && c.id == id {
			return
		}
		c.id = id
		c.state = StateConnected
		c.logger.Info("connected", "id", id, "server", c.cfg.ServerAddr)
		c.events.push(Connected{ID: id})

	case OpDisconnect:
		c.disconnect(ReasonRequested)

	case OpHeartbeat:
		// liveness only, already recorded above

	case OpData:
		if c.state != StateConnected {
			c.logger.Debug("dropping data before connect reply")
			return
		}
		c.events.push(ServerMessage{Payload: body})
	}
}

func (c *Client) disconnect(reason DisconnectReason) {
	if c.state == StateDisconnected {
		return
	}
	c.state = StateDisconnected
	c.logger.Info("disconnected", "server", c.cfg.ServerAddr, "reason", reason)
	c.events.push(Disconnected{Reason: reason})

	// Close still has a notice in flight.
	if reason == ReasonClosed {
		return
	}
	if pc, ok := c.transport.(transport.PeerCloser); ok {
		if err := pc.ClosePeer(c.cfg.ServerAddr); err != nil {
			c.logger.Debug("failed to release server", "error", err)
		}
	}
}

// ==================================================================
// Send
// ==================================================================

// Send transmits data to the server. A failed send disconnects the client.
func (c *Client) Send(data []byte, r transport.Reliability) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return ErrDisconnected
	}

	if err := transport.SendWith(c.transport, c.cfg.ServerAddr, OpData.Frame(data), r); err != nil {
		c.logger.Warn("send failed", "server", c.cfg.ServerAddr, "error", err)
		c.disconnect(ReasonSendFailed)
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	c.lastSent = c.now()
	return nil
}

// SendReliable sends data reliably. Ordered messages use DefaultChannel.
func (c *Client) SendReliable(data []byte, ordered bool) error {
	if ordered {
		return c.Send(data, transport.ReliableOrdered(DefaultChannel))
	}
	return c.Send(data, transport.ReliableUnordered)
}

// ==================================================================
// Lifecycle
// ==================================================================

// Close announces the disconnect to the server and closes the transport.
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.state != StateDisconnected {
			notice := OpDisconnect.Frame(nil)
			if sendErr := c.transport.SendReliable(c.cfg.ServerAddr, notice, true, ControlChannel); sendErr != nil {
				c.logger.Debug("failed to send disconnect notice", "error", sendErr)
			}
			c.disconnect(ReasonClosed)
		}
		c.mu.Unlock()

		if c.engine != nil {
			err = c.engine.Close()
			return
		}
		if cl, ok := c.transport.(io.Closer); ok {
			err = cl.Close()
		}
	})

	return err
}
