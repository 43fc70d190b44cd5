package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wick3dr0se/wrym/pkg/reliable"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/transport/memory"
)

const serverAddr = "server"

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Unix(1000, 0)}
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	t       *testing.T
	network *memory.Network
	clock   *manualClock
	server  *Server
}

func newHarness(t *testing.T, cfg ServerConfig) *harness {
	t.Helper()

	network := memory.NewNetwork()
	ep, err := network.Listen(serverAddr)
	require.NoError(t, err)

	clock := newManualClock()
	cfg.Transport = ep
	server, err := newServer(cfg, clock.now)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	return &harness{t: t, network: network, clock: clock, server: server}
}

// connect creates a client endpoint and session and runs the handshake.
func (h *harness) connect(cfg ClientConfig) (*Client, *memory.Endpoint) {
	h.t.Helper()

	c, ep := h.dial(cfg)
	h.pump(c)

	_, ok := c.ID()
	require.True(h.t, ok, "client did not connect")
	return c, ep
}

// dial creates a client without waiting for the reply.
func (h *harness) dial(cfg ClientConfig) (*Client, *memory.Endpoint) {
	h.t.Helper()

	ep, err := h.network.Listen("")
	require.NoError(h.t, err)

	cfg.Transport = ep
	cfg.ServerAddr = serverAddr
	c, err := newClient(cfg, h.clock.now)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { c.Close() })
	return c, ep
}

// raw attaches an endpoint that speaks the wire format directly.
func (h *harness) raw(addr string) *memory.Endpoint {
	h.t.Helper()
	ep, err := h.network.Listen(addr)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { ep.Close() })
	return ep
}

// pump polls the server and the given clients a few rounds so that in-flight
// messages and their replies settle.
func (h *harness) pump(clients ...*Client) {
	for range 4 {
		h.server.Poll()
		for _, c := range clients {
			c.Poll()
		}
	}
}

func serverEvents(s *Server) []ServerEvent {
	var out []ServerEvent
	for {
		e, ok := s.RecvEvent()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func clientEvents(c *Client) []ClientEvent {
	var out []ClientEvent
	for {
		e, ok := c.RecvEvent()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func unreliableFrame(msg []byte) []byte {
	return reliable.Encode(reliable.Header{Kind: reliable.KindUnreliable}, msg)
}

func sendRaw(t *testing.T, ep *memory.Endpoint, to string, msg []byte) {
	t.Helper()
	require.NoError(t, ep.Send(to, unreliableFrame(msg), transport.Unreliable))
}
