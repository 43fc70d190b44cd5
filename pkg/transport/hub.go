package transport

import (
	"sync"
	"sync/atomic"

	"github.com/wick3dr0se/wrym/pkg/wlog"
)

// MessageConn is a connection that carries whole messages. Connection
// oriented media adapt their native connections to it and let a Hub do the
// bookkeeping.
type MessageConn interface {
	// ReadMessage blocks until the next inbound message arrives.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one message. Media with a single ordered stream
	// may ignore r.
	WriteMessage(data []byte, r Reliability) error
	Close() error
}

type hubConn struct {
	addr    string
	conn    MessageConn
	writeMu sync.Mutex
	// released is set when the local side closed the connection on purpose.
	released atomic.Bool
}

// Hub tracks the live connections of a medium by address, reads each of them
// on its own goroutine and funnels everything into one Inbox.
//
// A connection that fails to read is removed and reported with a close
// signal, unless it was released through ClosePeer. Hub implements
// ReliableTransport, so media embed it and only add dialing or accepting.
type Hub struct {
	inbox  *Inbox
	logger wlog.Logger

	conns  map[string]*hubConn
	connMu sync.RWMutex

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	readers   sync.WaitGroup
}

func NewHub(inboxSize int, logger wlog.Logger) *Hub {
	return &Hub{
		inbox:  NewInbox(inboxSize),
		logger: wlog.OrNop(logger),
		conns:  make(map[string]*hubConn),
		done:   make(chan struct{}),
	}
}

// Add registers conn under addr and starts reading from it. An existing
// connection under the same address is replaced and closed.
func (h *Hub) Add(addr string, conn MessageConn) error {
	if h.closed.Load() {
		conn.Close()
		return ErrClosed
	}

	c := &hubConn{addr: addr, conn: conn}

	// Close swaps the map under connMu after setting closed, so a conn
	// inserted here is either seen by Close or refused.
	h.connMu.Lock()
	if h.closed.Load() {
		h.connMu.Unlock()
		conn.Close()
		return ErrClosed
	}
	old, exists := h.conns[addr]
	h.conns[addr] = c
	h.readers.Add(1)
	h.connMu.Unlock()

	if exists {
		old.released.Store(true)
		old.conn.Close()
	}

	go h.readPump(c)

	h.logger.Debug("connection registered", "addr", addr)
	return nil
}

func (h *Hub) readPump(c *hubConn) {
	defer h.readers.Done()

	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			h.drop(c, err)
			return
		}
		if len(data) == 0 {
			continue
		}
		if !h.inbox.PushWait(Packet{Addr: c.addr, Data: data}, h.done) {
			return
		}
	}
}

// drop removes c after a read or write failure and reports the close.
func (h *Hub) drop(c *hubConn, cause error) {
	h.connMu.Lock()
	if cur, ok := h.conns[c.addr]; ok && cur == c {
		delete(h.conns, c.addr)
	}
	h.connMu.Unlock()

	c.conn.Close()

	if c.released.Swap(true) || h.closed.Load() {
		return
	}

	h.logger.Debug("connection lost", "addr", c.addr, "error", cause)
	h.inbox.PushClose(c.addr, h.done)
}

var (
	_ ReliableTransport = (*Hub)(nil)
	_ PeerCloser        = (*Hub)(nil)
)

// Poll does nothing: connections are read on their own goroutines.
func (h *Hub) Poll() {}

// Receive pops the next inbound packet.
func (h *Hub) Receive() (Packet, bool) {
	return h.inbox.Receive()
}

func (h *Hub) SendReliable(addr string, data []byte, ordered bool, channel uint8) error {
	if ordered {
		return h.Send(addr, data, ReliableOrdered(channel))
	}
	return h.Send(addr, data, ReliableUnordered)
}

// Send writes data to addr. A failed write drops the connection.
func (h *Hub) Send(addr string, data []byte, r Reliability) error {
	if h.closed.Load() {
		return ErrClosed
	}

	h.connMu.RLock()
	c, ok := h.conns[addr]
	h.connMu.RUnlock()

	if !ok {
		return ErrPeerNotFound{Addr: addr}
	}

	c.writeMu.Lock()
	err := c.conn.WriteMessage(data, r)
	c.writeMu.Unlock()

	if err != nil {
		h.drop(c, err)
		return err
	}
	return nil
}

// ClosePeer closes the connection to addr without reporting a close signal.
func (h *Hub) ClosePeer(addr string) error {
	h.connMu.Lock()
	c, ok := h.conns[addr]
	delete(h.conns, addr)
	h.connMu.Unlock()

	if !ok {
		return nil
	}
	c.released.Store(true)
	return c.conn.Close()
}

// Addrs returns the addresses of all live connections.
func (h *Hub) Addrs() []string {
	h.connMu.RLock()
	defer h.connMu.RUnlock()

	addrs := make([]string, 0, len(h.conns))
	for addr := range h.conns {
		addrs = append(addrs, addr)
	}
	return addrs
}

func (h *Hub) Len() int {
	h.connMu.RLock()
	defer h.connMu.RUnlock()
	return len(h.conns)
}

// Done is closed once the hub is closed.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) IsClosed() bool {
	return h.closed.Load()
}

// Close closes every connection and waits for the readers to stop.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.done)

		h.connMu.Lock()
		conns := h.conns
		h.conns = make(map[string]*hubConn)
		h.connMu.Unlock()

		for _, c := range conns {
			c.released.Store(true)
			c.conn.Close()
		}

		h.readers.Wait()
	})

	return nil
}
