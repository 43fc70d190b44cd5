// Package session implements connection lifecycle on top of a transport.
//
// A Server assigns numeric identities to the addresses that announce
// themselves, evicts silent clients and turns framed messages into events.
// A Client announces itself to a server and mirrors that state machine.
// Both are driven by calling Poll from a single loop and draining events
// with RecvEvent.
package session

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/wick3dr0se/wrym/pkg/reliable"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

type clientRecord struct {
	id           uint32
	addr         string
	lastActivity time.Time
}

type Server struct {
	cfg       ServerConfig
	logger    wlog.Logger
	transport transport.ReliableTransport
	engine    *reliable.Engine
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*clientRecord
	ids     map[uint32]string
	lastID  uint32
	events  eventQueue[ServerEvent]
	closed  bool

	closeOnce sync.Once
}

// NewServer creates a server on cfg.Transport. Transports without the
// reliable capability are wrapped in a reliable.Engine.
func NewServer(cfg ServerConfig) (*Server, error) {
	return newServer(cfg, time.Now)
}

func newServer(cfg ServerConfig, now func() time.Time) (*Server, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	cfg = cfg.withDefaults()

	rt, engine := reliableOver(cfg.Transport, cfg.Reliable)

	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger,
		transport: rt,
		engine:    engine,
		now:       now,
		clients:   make(map[string]*clientRecord),
		ids:       make(map[uint32]string),
		events:    eventQueue[ServerEvent]{limit: cfg.EventQueueSize},
	}
	return s, nil
}

// Engine returns the interposed delivery engine, or nil if the transport is
// natively reliable.
func (s *Server) Engine() *reliable.Engine {
	return s.engine
}

// ==================================================================
// Poll loop
// ==================================================================

// Poll drives the transport, evicts timed out clients and processes every
// inbound message that is available, as long as the event queue has room.
func (s *Server) Poll() {
	s.transport.Poll()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.dropInactive()

	for !s.events.full() {
		p, ok := s.transport.Receive()
		if !ok {
			return
		}
		s.handlePacket(p)
	}
}

// RecvEvent pops the oldest pending event.
func (s *Server) RecvEvent() (ServerEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.pop()
}

func (s *Server) handlePacket(p transport.Packet) {
	if p.IsCloseSignal() {
		s.dropClient(p.Addr, ReasonTransportClosed)
		return
	}

	op, body, err := parseMessage(p.Data)
	if err != nil {
		s.logger.Debug("discarding message", "addr", p.Addr, "error", err)
		return
	}

	if c, ok := s.clients[p.Addr]; ok {
		c.lastActivity = s.now()
	}

	switch op {
	case OpConnect:
		s.addClient(p.Addr)
	case OpDisconnect:
		s.dropClient(p.Addr, ReasonRequested)
	case OpHeartbeat:
		if _, ok := s.clients[p.Addr]; !ok {
			s.rejectStale(p.Addr)
			return
		}
		if err := s.transport.Send(p.Addr, OpHeartbeat.Frame(nil), transport.Unreliable); err != nil {
			s.logger.Debug("failed to answer heartbeat", "addr", p.Addr, "error", err)
		}
	case OpData:
		c, ok := s.clients[p.Addr]
		if !ok {
			s.logger.Debug("dropping data from unknown address", "addr", p.Addr)
			return
		}
		s.events.push(MessageReceived{ID: c.id, Payload: body})
	}
}

// addClient registers addr and answers with its identity. A Connect from a
// known address only refreshes its activity.
func (s *Server) addClient(addr string) {
	if _, ok := s.clients[addr]; ok {
		return
	}

	s.lastID++
	c := &clientRecord{
		id:           s.lastID,
		addr:         addr,
		lastActivity: s.now(),
	}
	s.clients[addr] = c
	s.ids[c.id] = addr

	s.logger.Info("client connected", "id", c.id, "addr", addr)

	reply := connectReply(c.id)
	if err := s.transport.SendReliable(addr, reply, true, ControlChannel); err != nil {
		s.logger.Warn("failed to send connect reply", "id", c.id, "addr", addr, "error", err)
	}
	s.events.push(ClientConnected{ID: c.id, Addr: addr})
}

// dropClient removes addr, notifies it on a best-effort basis and releases
// everything the transport keeps for it.
func (s *Server) dropClient(addr string, reason DisconnectReason) {
	c, ok := s.clients[addr]
	if !ok {
		return
	}
	delete(s.clients, addr)
	delete(s.ids, c.id)

	s.logger.Info("client disconnected", "id", c.id, "addr", addr, "reason", reason)
	s.events.push(ClientDisconnected{ID: c.id, Addr: addr, Reason: reason})

	if reason != ReasonTransportClosed {
		notice := OpDisconnect.Frame(nil)
		if err := s.transport.SendReliable(addr, notice, true, ControlChannel); err != nil {
			s.logger.Debug("failed to send disconnect notice", "id", c.id, "addr", addr, "error", err)
		}
	}

	if pc, ok := s.transport.(transport.PeerCloser); ok {
		if err := pc.ClosePeer(addr); err != nil {
			s.logger.Debug("failed to release peer", "addr", addr, "error", err)
		}
	}
}

// rejectStale tells an address that believes it is connected that it is not,
// and releases whatever the transport still holds for it.
func (s *Server) rejectStale(addr string) {
	s.logger.Debug("rejecting heartbeat from unknown address", "addr", addr)

	if err := s.transport.Send(addr, OpDisconnect.Frame(nil), transport.Unreliable); err != nil {
		s.logger.Debug("failed to send disconnect notice", "addr", addr, "error", err)
	}
	if pc, ok := s.transport.(transport.PeerCloser); ok {
		if err := pc.ClosePeer(addr); err != nil {
			s.logger.Debug("failed to release peer", "addr", addr, "error", err)
		}
	}
}

func (s *Server) dropInactive() {
	now := s.now()

	var expired []string
	for addr, c := range s.clients {
		if now.Sub(c.lastActivity) > s.cfg.ClientTimeout {
			expired = append(expired, addr)
		}
	}

	for _, addr := range expired {
		s.dropClient(addr, ReasonTimedOut)
	}
}

// ==================================================================
// Send
// ==================================================================

// SendTo sends data to the client with the given identity. A failed send
// disconnects the client.
func (s *Server) SendTo(id uint32, data []byte, r transport.Reliability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.ids[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownClient, id)
	}
	return s.sendData(addr, data, r)
}

// SendToAddr is SendTo keyed by transport address.
func (s *Server) SendToAddr(addr string, data []byte, r transport.Reliability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, addr)
	}
	return s.sendData(addr, data, r)
}

// Broadcast sends data to every connected client.
func (s *Server) Broadcast(data []byte, r transport.Reliability) {
	s.BroadcastExcept(data, r)
}

// BroadcastExcept sends data to every connected client but the excluded ones.
func (s *Server) BroadcastExcept(data []byte, r transport.Reliability, except ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := make([]string, 0, len(s.clients))
	for addr, c := range s.clients {
		if slices.Contains(except, c.id) {
			continue
		}
		addrs = append(addrs, addr)
	}

	for _, addr := range addrs {
		_ = s.sendData(addr, data, r)
	}
}

func (s *Server) sendData(addr string, data []byte, r transport.Reliability) error {
	if s.closed {
		return ErrSessionClosed
	}

	if err := transport.SendWith(s.transport, addr, OpData.Frame(data), r); err != nil {
		s.logger.Warn("send failed, disconnecting client", "addr", addr, "error", err)
		s.dropClient(addr, ReasonSendFailed)
		return fmt.Errorf("%w: %s", ErrDisconnected, addr)
	}
	return nil
}

// ==================================================================
// Clients
// ==================================================================

// ClientID returns the identity assigned to addr.
func (s *Server) ClientID(addr string) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[addr]
	if !ok {
		return 0, false
	}
	return c.id, true
}

// ClientAddr returns the address of the client with the given identity.
func (s *Server) ClientAddr(id uint32) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.ids[id]
	return addr, ok
}

// Clients returns the identities of all connected clients in ascending order.
func (s *Server) Clients() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint32, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Disconnect removes a client on the server's initiative.
func (s *Server) Disconnect(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.ids[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownClient, id)
	}
	s.dropClient(addr, ReasonKicked)
	return nil
}

// ==================================================================
// Lifecycle
// ==================================================================

// Close disconnects every client and closes the transport. Events raised by
// closing can still be drained with RecvEvent.
func (s *Server) Close() error {
	var err error

	s.closeOnce.Do(func() {
		s.mu.Lock()
		for addr := range s.clients {
			s.dropClient(addr, ReasonClosed)
		}
		s.closed = true
		s.mu.Unlock()

		if s.engine != nil {
			err = s.engine.Close()
			return
		}
		if c, ok := s.transport.(io.Closer); ok {
			err = c.Close()
		}
	})

	return err
}
