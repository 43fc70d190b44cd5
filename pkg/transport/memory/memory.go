// Package memory implements an in-process, best-effort packet network.
//
// Endpoints created from the same Network can reach each other by address.
// A Filter can drop or duplicate packets to simulate a lossy link.
package memory

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/wick3dr0se/wrym/pkg/transport"
)

// Filter decides how many copies of a packet are delivered: 0 drops it,
// 1 delivers it normally, 2 or more duplicate it.
type Filter func(from, to string, data []byte) int

type Network struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	filter    Filter
	inboxSize int
}

func NewNetwork() *Network {
	return &Network{
		endpoints: make(map[string]*Endpoint),
		inboxSize: 4096,
	}
}

// SetFilter installs f for all future sends. A nil filter delivers everything once.
func (n *Network) SetFilter(f Filter) {
	n.mu.Lock()
	n.filter = f
	n.mu.Unlock()
}

// Listen registers an endpoint under addr. An empty addr picks a unique one.
func (n *Network) Listen(addr string) (*Endpoint, error) {
	if addr == "" {
		addr = "mem-" + uuid.NewString()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.endpoints[addr]; ok {
		return nil, fmt.Errorf("memory: address %s already in use", addr)
	}

	e := &Endpoint{
		network: n,
		addr:    addr,
		inbox:   transport.NewInbox(n.inboxSize),
	}
	n.endpoints[addr] = e
	return e, nil
}

func (n *Network) route(from, to string, data []byte) error {
	n.mu.RLock()
	dst, ok := n.endpoints[to]
	filter := n.filter
	n.mu.RUnlock()

	if !ok {
		return transport.ErrPeerNotFound{Addr: to}
	}

	copies := 1
	if filter != nil {
		copies = filter(from, to, data)
	}

	for i := 0; i < copies; i++ {
		buf := make([]byte, len(data))
		copy(buf, data)
		dst.inbox.Push(transport.Packet{Addr: from, Data: buf})
	}
	return nil
}

func (n *Network) remove(addr string) {
	n.mu.Lock()
	delete(n.endpoints, addr)
	n.mu.Unlock()
}

// Endpoint is one attachment point on a Network. It implements
// transport.Transport but not the reliable capability.
type Endpoint struct {
	network *Network
	addr    string
	inbox   *transport.Inbox
	closed  atomic.Bool
}

var _ transport.Transport = (*Endpoint)(nil)

func (e *Endpoint) Addr() string {
	return e.addr
}

func (e *Endpoint) Poll() {}

func (e *Endpoint) Receive() (transport.Packet, bool) {
	return e.inbox.Receive()
}

// Send ignores r: the memory network only offers best-effort delivery.
func (e *Endpoint) Send(addr string, data []byte, _ transport.Reliability) error {
	if e.closed.Load() {
		return transport.ErrClosed
	}
	return e.network.route(e.addr, addr, data)
}

func (e *Endpoint) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.network.remove(e.addr)
	}
	return nil
}
