// Package reliable turns a best-effort datagram medium into a reliable one.
//
// The Engine sits between the session layer and a transport.Transport that
// only offers unreliable delivery. It numbers reliable messages per peer,
// retransmits them until they are acknowledged or the retry ceiling is hit,
// and hands ordered messages to the caller strictly in sequence.
package reliable

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

// Stats is a snapshot of engine counters.
type Stats struct {
	Peers           int
	Pending         int
	Buffered        int
	Retransmissions uint64
	Exhausted       uint64
	Duplicates      uint64
	Malformed       uint64
}

// Engine implements transport.ReliableTransport on top of an unreliable medium.
type Engine struct {
	inner  transport.Transport
	cfg    Config
	logger wlog.Logger
	now    func() time.Time

	mu    sync.Mutex
	peers map[string]*peerState
	ready []transport.Packet

	retransmissions atomic.Uint64
	exhausted       atomic.Uint64
	duplicates      atomic.Uint64
	malformed       atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	cancel    context.CancelFunc
	sweepDone chan struct{}
}

var (
	_ transport.ReliableTransport = (*Engine)(nil)
	_ transport.PeerCloser        = (*Engine)(nil)
	_ io.Closer                   = (*Engine)(nil)
)

// NewEngine wraps inner and starts the retransmission sweep. Close stops it.
func NewEngine(inner transport.Transport, cfg Config) *Engine {
	e := newEngine(inner, cfg, time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.sweepDone = make(chan struct{})

	go e.sweepLoop(ctx)
	return e
}

func newEngine(inner transport.Transport, cfg Config, now func() time.Time) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		inner:  inner,
		cfg:    cfg,
		logger: cfg.Logger,
		now:    now,
		peers:  make(map[string]*peerState),
	}
}

// Inner returns the wrapped medium.
func (e *Engine) Inner() transport.Transport {
	return e.inner
}

// ==================================================================
// Send
// ==================================================================

func (e *Engine) Poll() {
	e.inner.Poll()
}

// Send transmits data with the requested reliability. Reliable modes are
// routed through SendReliable.
func (e *Engine) Send(addr string, data []byte, r transport.Reliability) error {
	if r.IsReliable() {
		return e.SendReliable(addr, data, r.Mode == transport.ModeReliableOrdered, r.Channel)
	}
	if e.closed.Load() {
		return ErrClosed
	}
	return e.inner.Send(addr, Encode(Header{Kind: KindUnreliable}, data), transport.Unreliable)
}

// SendReliable numbers data, remembers it for retransmission and transmits it.
// Every ordered channel is its own sequence space, unordered messages share
// a separate one.
func (e *Engine) SendReliable(addr string, data []byte, ordered bool, channel uint8) error {
	if e.closed.Load() {
		return ErrClosed
	}

	stream := unorderedStream
	if ordered {
		stream = orderedStream(channel)
	}

	e.mu.Lock()
	p := e.peer(addr)
	key := pendingKey{stream: stream, seq: p.nextSeq(stream)}
	frame := Encode(Header{Kind: stream.dataKind(), Channel: stream.channel, Seq: key.seq}, data)
	p.pending[key] = &pendingEntry{frame: frame, lastSent: e.now()}
	e.mu.Unlock()

	if err := e.inner.Send(addr, frame, transport.Unreliable); err != nil {
		e.mu.Lock()
		if p, ok := e.peers[addr]; ok {
			delete(p.pending, key)
		}
		e.mu.Unlock()
		return err
	}
	return nil
}

// ==================================================================
// Receive
// ==================================================================

// Receive returns the next message that is ready for the application.
// Acknowledgements, duplicates and out-of-order messages are consumed
// internally, so one call may read several frames from the medium.
func (e *Engine) Receive() (transport.Packet, bool) {
	for {
		if p, ok := e.popReady(); ok {
			return p, true
		}

		p, ok := e.inner.Receive()
		if !ok {
			return transport.Packet{}, false
		}

		if p.IsCloseSignal() {
			e.forget(p.Addr)
			return p, true
		}

		e.handleFrame(p.Addr, p.Data)
	}
}

func (e *Engine) popReady() (transport.Packet, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.ready) == 0 {
		return transport.Packet{}, false
	}
	p := e.ready[0]
	e.ready[0] = transport.Packet{}
	e.ready = e.ready[1:]
	return p, true
}

func (e *Engine) handleFrame(addr string, frame []byte) {
	h, payload, err := Decode(frame)
	if err != nil {
		e.malformed.Add(1)
		e.logger.Debug("discarding frame", "addr", addr, "error", err)
		return
	}

	switch h.Kind {
	case KindAck:
		e.acknowledge(addr, pendingKey{stream: orderedStream(h.Channel), seq: h.Seq})

	case KindAckUnordered:
		e.acknowledge(addr, pendingKey{stream: unorderedStream, seq: h.Seq})

	case KindUnreliable:
		if len(payload) == 0 {
			e.malformed.Add(1)
			return
		}
		e.mu.Lock()
		e.ready = append(e.ready, transport.Packet{Addr: addr, Data: payload})
		e.mu.Unlock()

	case KindReliable, KindReliableUnordered:
		if len(payload) == 0 {
			e.malformed.Add(1)
			e.logger.Debug("discarding empty reliable frame", "addr", addr, "seq", h.Seq)
			return
		}
		stream := unorderedStream
		if h.Kind == KindReliable {
			stream = orderedStream(h.Channel)
		}
		e.receiveReliable(addr, stream, h.Seq, payload)
	}
}

func (e *Engine) receiveReliable(addr string, stream streamKey, seq uint32, payload []byte) {
	e.mu.Lock()
	released, fresh := e.peer(addr).accept(stream, seq, payload)
	for _, data := range released {
		e.ready = append(e.ready, transport.Packet{Addr: addr, Data: data})
	}
	e.mu.Unlock()

	if !fresh {
		e.duplicates.Add(1)
	}

	// Duplicates are acknowledged again: the previous ack may have been lost.
	ack := Encode(Header{Kind: stream.ackKind(), Channel: stream.channel, Seq: seq}, nil)
	if err := e.inner.Send(addr, ack, transport.Unreliable); err != nil {
		e.logger.Debug("failed to send ack", "addr", addr, "seq", seq, "error", err)
	}
}

// acknowledge retires a pending entry. Unknown sequences are ignored.
func (e *Engine) acknowledge(addr string, key pendingKey) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.peers[addr]; ok {
		delete(p.pending, key)
	}
}

// ==================================================================
// Retransmission
// ==================================================================

func (e *Engine) sweepLoop(ctx context.Context) {
	defer close(e.sweepDone)

	ticker := time.NewTicker(e.cfg.RetransmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

type outbound struct {
	addr  string
	seq   uint32
	frame []byte
}

// sweep resends every pending entry older than the retransmit interval and
// drops entries that already used up their retries.
func (e *Engine) sweep() {
	now := e.now()

	var resend, dropped []outbound

	e.mu.Lock()
	for addr, p := range e.peers {
		for key, entry := range p.pending {
			if now.Sub(entry.lastSent) < e.cfg.RetransmitInterval {
				continue
			}
			if entry.retries >= e.cfg.MaxRetries {
				delete(p.pending, key)
				dropped = append(dropped, outbound{addr: addr, seq: key.seq})
				continue
			}
			entry.retries++
			entry.lastSent = now
			resend = append(resend, outbound{addr: addr, seq: key.seq, frame: entry.frame})
		}
	}
	e.mu.Unlock()

	for _, out := range resend {
		e.retransmissions.Add(1)
		if err := e.inner.Send(out.addr, out.frame, transport.Unreliable); err != nil {
			e.logger.Debug("retransmission failed", "addr", out.addr, "seq", out.seq, "error", err)
		}
	}

	for _, out := range dropped {
		e.exhausted.Add(1)
		e.logger.Warn("dropping unacknowledged message", "addr", out.addr, "seq", out.seq, "retries", e.cfg.MaxRetries)
		if e.cfg.OnExhausted != nil {
			e.cfg.OnExhausted(out.addr, out.seq)
		}
	}
}

// ==================================================================
// Lifecycle
// ==================================================================

// peer returns the state for addr, creating it on first use. e.mu must be held.
func (e *Engine) peer(addr string) *peerState {
	p, ok := e.peers[addr]
	if !ok {
		p = newPeerState()
		e.peers[addr] = p
	}
	return p
}

// forget drops all state kept for addr, including messages that are waiting
// to be retransmitted.
func (e *Engine) forget(addr string) {
	e.mu.Lock()
	delete(e.peers, addr)
	e.mu.Unlock()
}

// ClosePeer releases the state of addr and forwards to the medium.
func (e *Engine) ClosePeer(addr string) error {
	e.forget(addr)

	if pc, ok := e.inner.(transport.PeerCloser); ok {
		return pc.ClosePeer(addr)
	}
	return nil
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{Peers: len(e.peers)}
	for _, p := range e.peers {
		s.Pending += len(p.pending)
		s.Buffered += p.buffered()
	}
	e.mu.Unlock()

	s.Retransmissions = e.retransmissions.Load()
	s.Exhausted = e.exhausted.Load()
	s.Duplicates = e.duplicates.Load()
	s.Malformed = e.malformed.Load()
	return s
}

// Close stops retransmission, releases every peer and closes the medium if
// it is closable.
func (e *Engine) Close() error {
	var err error

	e.closeOnce.Do(func() {
		e.closed.Store(true)

		if e.cancel != nil {
			e.cancel()
			<-e.sweepDone
		}

		e.mu.Lock()
		e.peers = make(map[string]*peerState)
		e.ready = nil
		e.mu.Unlock()

		if c, ok := e.inner.(io.Closer); ok {
			err = c.Close()
		}
	})

	return err
}
