package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wick3dr0se/wrym/pkg/reliable"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/transport/transportmock"
	"go.uber.org/mock/gomock"
)

// TestServerRequiresTransport tests construction without a transport
func TestServerRequiresTransport(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.ErrorIs(t, err, ErrNoTransport)
}

// TestIdentityAssignment tests that identities are never reused
func TestIdentityAssignment(t *testing.T) {
	h := newHarness(t, ServerConfig{})

	c1, ep1 := h.connect(ClientConfig{})
	c2, ep2 := h.connect(ClientConfig{})

	id1, _ := c1.ID()
	id2, _ := c2.ID()
	assert.Equal(t, uint32(1), id1)
	assert.Equal(t, uint32(2), id2)

	require.NoError(t, c1.Close())
	h.pump()

	c3, ep3 := h.connect(ClientConfig{})
	id3, _ := c3.ID()
	assert.Equal(t, uint32(3), id3)

	assert.Equal(t, []ServerEvent{
		ClientConnected{ID: 1, Addr: ep1.Addr()},
		ClientConnected{ID: 2, Addr: ep2.Addr()},
		ClientDisconnected{ID: 1, Addr: ep1.Addr(), Reason: ReasonRequested},
		ClientConnected{ID: 3, Addr: ep3.Addr()},
	}, serverEvents(h.server))
	assert.Equal(t, []uint32{2, 3}, h.server.Clients())
}

// TestConnectIsIdempotent tests that a repeated Connect keeps the identity
func TestConnectIsIdempotent(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	raw := h.raw("raw")

	sendRaw(t, raw, serverAddr, OpConnect.Frame(nil))
	sendRaw(t, raw, serverAddr, OpConnect.Frame(nil))
	h.server.Poll()

	assert.Equal(t, []ServerEvent{ClientConnected{ID: 1, Addr: "raw"}}, serverEvents(h.server))
	assert.Equal(t, []uint32{1}, h.server.Clients())

	id, ok := h.server.ClientID("raw")
	assert.True(t, ok)
	assert.Equal(t, uint32(1), id)

	addr, ok := h.server.ClientAddr(1)
	assert.True(t, ok)
	assert.Equal(t, "raw", addr)
}

// TestConnectReply tests the bytes of the identity announcement
func TestConnectReply(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	first := h.raw("a")
	raw := h.raw("b")

	sendRaw(t, first, serverAddr, OpConnect.Frame(nil))
	sendRaw(t, raw, serverAddr, OpConnect.Frame(nil))
	h.server.Poll()

	p, ok := raw.Receive()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 1, 1, 2, 0, 0, 0}, p.Data)
}

// TestTimeoutEviction tests that silent clients are evicted exactly once
func TestTimeoutEviction(t *testing.T) {
	h := newHarness(t, ServerConfig{ClientTimeout: 10 * time.Second})
	c, ep := h.connect(ClientConfig{KeepAliveInterval: -1})
	serverEvents(h.server)
	clientEvents(c)

	h.clock.advance(10 * time.Second)
	h.server.Poll()
	assert.Empty(t, serverEvents(h.server))

	h.clock.advance(time.Millisecond)
	h.server.Poll()
	h.server.Poll()
	assert.Equal(t, []ServerEvent{
		ClientDisconnected{ID: 1, Addr: ep.Addr(), Reason: ReasonTimedOut},
	}, serverEvents(h.server))
	assert.Empty(t, h.server.Clients())

	c.Poll()
	assert.Equal(t, []ClientEvent{Disconnected{Reason: ReasonRequested}}, clientEvents(c))
	assert.Equal(t, StateDisconnected, c.State())
}

// TestActivityKeepsClientAlive tests that any message refreshes liveness
func TestActivityKeepsClientAlive(t *testing.T) {
	h := newHarness(t, ServerConfig{ClientTimeout: 10 * time.Second})
	c, _ := h.connect(ClientConfig{KeepAliveInterval: -1})

	for range 3 {
		h.clock.advance(6 * time.Second)
		require.NoError(t, c.Send([]byte("tick"), transport.Unreliable))
		h.server.Poll()
	}

	assert.Equal(t, []uint32{1}, h.server.Clients())
}

// TestDataFromUnknownAddress tests that data without a record is dropped
func TestDataFromUnknownAddress(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	raw := h.raw("stranger")

	sendRaw(t, raw, serverAddr, OpData.Frame([]byte("hello")))
	h.server.Poll()

	assert.Empty(t, serverEvents(h.server))
	assert.Empty(t, h.server.Clients())
}

// TestHeartbeat tests that heartbeats are answered for known clients and
// rejected for unknown ones
func TestHeartbeat(t *testing.T) {
	h := newHarness(t, ServerConfig{Reliable: reliable.Config{RetransmitInterval: time.Hour}})
	known := h.raw("known")
	stranger := h.raw("stranger")

	sendRaw(t, known, serverAddr, OpConnect.Frame(nil))
	h.server.Poll()
	_, ok := known.Receive()
	require.True(t, ok)
	serverEvents(h.server)

	h.clock.advance(time.Second)
	sendRaw(t, known, serverAddr, OpHeartbeat.Frame(nil))
	sendRaw(t, stranger, serverAddr, OpHeartbeat.Frame([]byte("ignored")))
	h.server.Poll()

	p, ok := known.Receive()
	require.True(t, ok)
	assert.Equal(t, unreliableFrame(OpHeartbeat.Frame(nil)), p.Data)

	p, ok = stranger.Receive()
	require.True(t, ok)
	assert.Equal(t, unreliableFrame(OpDisconnect.Frame(nil)), p.Data)

	assert.Empty(t, serverEvents(h.server))
	assert.Equal(t, []uint32{1}, h.server.Clients())
}

// TestMalformedMessagesDiscarded tests unknown opcodes and empty data
func TestMalformedMessagesDiscarded(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	raw := h.raw("raw")

	sendRaw(t, raw, serverAddr, OpConnect.Frame(nil))
	h.server.Poll()
	serverEvents(h.server)

	sendRaw(t, raw, serverAddr, []byte{9, 1, 2})
	sendRaw(t, raw, serverAddr, OpData.Frame(nil))
	require.NoError(t, raw.Send(serverAddr, []byte{7}, transport.Unreliable))
	h.server.Poll()

	assert.Empty(t, serverEvents(h.server))
	assert.Equal(t, []uint32{1}, h.server.Clients())
}

// TestCloseSignal tests that an empty transport payload disconnects the peer
func TestCloseSignal(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	_, ep := h.connect(ClientConfig{})
	serverEvents(h.server)

	require.NoError(t, ep.Send(serverAddr, nil, transport.Unreliable))
	h.server.Poll()

	assert.Equal(t, []ServerEvent{
		ClientDisconnected{ID: 1, Addr: ep.Addr(), Reason: ReasonTransportClosed},
	}, serverEvents(h.server))
}

// TestMessagesAndBroadcast tests data in both directions
func TestMessagesAndBroadcast(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	c1, _ := h.connect(ClientConfig{})
	c2, _ := h.connect(ClientConfig{})
	c3, _ := h.connect(ClientConfig{})
	serverEvents(h.server)
	for _, c := range []*Client{c1, c2, c3} {
		clientEvents(c)
	}

	require.NoError(t, c2.SendReliable([]byte("from two"), true))
	h.pump(c1, c2, c3)
	assert.Equal(t, []ServerEvent{
		MessageReceived{ID: 2, Payload: []byte("from two")},
	}, serverEvents(h.server))

	h.server.BroadcastExcept([]byte("relay"), transport.ReliableOrdered(DefaultChannel), 2)
	require.NoError(t, h.server.SendTo(2, []byte("direct"), transport.ReliableUnordered))
	h.pump(c1, c2, c3)

	assert.Equal(t, []ClientEvent{ServerMessage{Payload: []byte("relay")}}, clientEvents(c1))
	assert.Equal(t, []ClientEvent{ServerMessage{Payload: []byte("direct")}}, clientEvents(c2))
	assert.Equal(t, []ClientEvent{ServerMessage{Payload: []byte("relay")}}, clientEvents(c3))

	h.server.Broadcast([]byte("all"), transport.Unreliable)
	h.pump(c1, c2, c3)
	for _, c := range []*Client{c1, c2, c3} {
		assert.Equal(t, []ClientEvent{ServerMessage{Payload: []byte("all")}}, clientEvents(c))
	}

	assert.ErrorIs(t, h.server.SendTo(42, []byte("x"), transport.Unreliable), ErrUnknownClient)
	assert.ErrorIs(t, h.server.SendToAddr("nowhere", []byte("x"), transport.Unreliable), ErrUnknownClient)
}

// TestKick tests disconnecting a client from the server side
func TestKick(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	c, ep := h.connect(ClientConfig{})
	serverEvents(h.server)
	clientEvents(c)

	require.NoError(t, h.server.Disconnect(1))
	assert.ErrorIs(t, h.server.Disconnect(1), ErrUnknownClient)

	assert.Equal(t, []ServerEvent{
		ClientDisconnected{ID: 1, Addr: ep.Addr(), Reason: ReasonKicked},
	}, serverEvents(h.server))

	c.Poll()
	assert.Equal(t, []ClientEvent{Disconnected{Reason: ReasonRequested}}, clientEvents(c))
	assert.ErrorIs(t, c.Send([]byte("late"), transport.Unreliable), ErrDisconnected)
}

// TestEventQueueBound tests that Poll stops draining when the queue is full
func TestEventQueueBound(t *testing.T) {
	h := newHarness(t, ServerConfig{EventQueueSize: 2})
	c, _ := h.connect(ClientConfig{})
	serverEvents(h.server)

	for range 5 {
		require.NoError(t, c.Send([]byte("m"), transport.Unreliable))
	}

	var counts []int
	for range 3 {
		h.server.Poll()
		counts = append(counts, len(serverEvents(h.server)))
	}
	assert.Equal(t, []int{2, 2, 1}, counts)
}

// TestServerClose tests that closing disconnects every client
func TestServerClose(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	c1, _ := h.connect(ClientConfig{})
	c2, _ := h.connect(ClientConfig{})
	serverEvents(h.server)

	require.NoError(t, h.server.Close())
	require.NoError(t, h.server.Close())

	var reasons []DisconnectReason
	for _, e := range serverEvents(h.server) {
		d, ok := e.(ClientDisconnected)
		require.True(t, ok)
		reasons = append(reasons, d.Reason)
	}
	assert.Equal(t, []DisconnectReason{ReasonClosed, ReasonClosed}, reasons)

	for _, c := range []*Client{c1, c2} {
		c.Poll()
		assert.Equal(t, StateDisconnected, c.State())
	}
	assert.ErrorIs(t, h.server.SendToAddr("x", nil, transport.Unreliable), ErrUnknownClient)
}

// TestSendFailureDisconnects tests that a failed send runs the disconnect path
func TestSendFailureDisconnects(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := transportmock.NewMockReliableTransport(ctrl)

	connect := transport.Packet{Addr: "peer", Data: OpConnect.Frame(nil)}
	gomock.InOrder(
		rt.EXPECT().Receive().Return(connect, true),
		rt.EXPECT().Receive().Return(transport.Packet{}, false),
	)
	rt.EXPECT().Poll().AnyTimes()
	rt.EXPECT().SendReliable("peer", connectReply(1), true, ControlChannel).Return(nil)

	s, err := NewServer(ServerConfig{Transport: rt})
	require.NoError(t, err)
	assert.Nil(t, s.Engine())

	s.Poll()
	assert.Equal(t, []ServerEvent{ClientConnected{ID: 1, Addr: "peer"}}, serverEvents(s))

	boom := errors.New("boom")
	rt.EXPECT().Send("peer", OpData.Frame([]byte("x")), transport.Unreliable).Return(boom)
	rt.EXPECT().SendReliable("peer", OpDisconnect.Frame(nil), true, ControlChannel).Return(boom)

	err = s.SendTo(1, []byte("x"), transport.Unreliable)
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Equal(t, []ServerEvent{
		ClientDisconnected{ID: 1, Addr: "peer", Reason: ReasonSendFailed},
	}, serverEvents(s))
	assert.Empty(t, s.Clients())
}
