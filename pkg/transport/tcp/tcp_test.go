package tcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wick3dr0se/wrym/pkg/transport"
)

func receive(t *testing.T, tr transport.Transport) transport.Packet {
	t.Helper()
	var p transport.Packet
	require.Eventually(t, func() bool {
		tr.Poll()
		var ok bool
		p, ok = tr.Receive()
		return ok
	}, 2*time.Second, time.Millisecond)
	return p
}

// TestTCPExchange tests framed messages in both directions
func TestTCPExchange(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", Config{})
	require.NoError(t, err)
	defer srv.Close()

	addr := srv.Addr().String()
	c, err := Dial(context.Background(), addr, Config{})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SendReliable(addr, []byte("one"), true, 0))
	require.NoError(t, c.Send(addr, []byte("two"), transport.Unreliable))

	first := receive(t, srv)
	second := receive(t, srv)
	assert.Equal(t, "one", string(first.Data))
	assert.Equal(t, "two", string(second.Data))
	assert.Equal(t, first.Addr, second.Addr)

	require.NoError(t, srv.Send(first.Addr, []byte("back"), transport.ReliableOrdered(1)))
	assert.Equal(t, transport.Packet{Addr: addr, Data: []byte("back")}, receive(t, c))
}

// TestTCPCloseSignal tests that a closed client is reported to the server
func TestTCPCloseSignal(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", Config{})
	require.NoError(t, err)
	defer srv.Close()

	c, err := Dial(context.Background(), srv.Addr().String(), Config{})
	require.NoError(t, err)

	require.NoError(t, c.Send(srv.Addr().String(), []byte("hi"), transport.Unreliable))
	peer := receive(t, srv).Addr

	require.NoError(t, c.Close())

	p := receive(t, srv)
	assert.True(t, p.IsCloseSignal())
	assert.Equal(t, peer, p.Addr)
}

// TestTCPClosePeer tests that the server can drop a client silently
func TestTCPClosePeer(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", Config{})
	require.NoError(t, err)
	defer srv.Close()

	addr := srv.Addr().String()
	c, err := Dial(context.Background(), addr, Config{})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(addr, []byte("hi"), transport.Unreliable))
	peer := receive(t, srv).Addr

	require.NoError(t, srv.ClosePeer(peer))

	p := receive(t, c)
	assert.True(t, p.IsCloseSignal())
	assert.Equal(t, addr, p.Addr)

	_, ok := srv.Receive()
	assert.False(t, ok)
	assert.ErrorIs(t, srv.Send(peer, []byte("x"), transport.Unreliable), transport.ErrUnreachable)
}
