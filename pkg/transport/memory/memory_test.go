package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wick3dr0se/wrym/pkg/transport"
)

// TestEndpointsExchangePackets tests basic routing between two endpoints
func TestEndpointsExchangePackets(t *testing.T) {
	n := NewNetwork()

	a, err := n.Listen("a")
	require.NoError(t, err)
	b, err := n.Listen("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(b.Addr(), "mem-"))

	require.NoError(t, a.Send(b.Addr(), []byte("ping"), transport.Unreliable))

	p, ok := b.Receive()
	require.True(t, ok)
	assert.Equal(t, transport.Packet{Addr: "a", Data: []byte("ping")}, p)

	_, ok = b.Receive()
	assert.False(t, ok)
}

// TestDuplicateAddress tests that an address can only be bound once
func TestDuplicateAddress(t *testing.T) {
	n := NewNetwork()
	_, err := n.Listen("a")
	require.NoError(t, err)
	_, err = n.Listen("a")
	assert.Error(t, err)
}

// TestUnreachable tests sending to unknown or closed endpoints
func TestUnreachable(t *testing.T) {
	n := NewNetwork()
	a, _ := n.Listen("a")
	b, _ := n.Listen("b")

	assert.ErrorIs(t, a.Send("nobody", []byte("x"), transport.Unreliable), transport.ErrUnreachable)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, a.Send("b", []byte("x"), transport.Unreliable), transport.ErrUnreachable)
	assert.ErrorIs(t, b.Send("a", []byte("x"), transport.Unreliable), transport.ErrClosed)
}

// TestFilter tests dropping and duplicating packets
func TestFilter(t *testing.T) {
	n := NewNetwork()
	a, _ := n.Listen("a")
	b, _ := n.Listen("b")

	n.SetFilter(func(from, to string, data []byte) int {
		switch string(data) {
		case "drop":
			return 0
		case "dup":
			return 2
		default:
			return 1
		}
	})

	for _, msg := range []string{"drop", "dup", "one"} {
		require.NoError(t, a.Send("b", []byte(msg), transport.Unreliable))
	}

	var got []string
	for {
		p, ok := b.Receive()
		if !ok {
			break
		}
		got = append(got, string(p.Data))
	}
	assert.Equal(t, []string{"dup", "dup", "one"}, got)
}

// TestSendCopiesData tests that the sender may reuse its buffer
func TestSendCopiesData(t *testing.T) {
	n := NewNetwork()
	a, _ := n.Listen("a")
	b, _ := n.Listen("b")

	buf := []byte("abc")
	require.NoError(t, a.Send("b", buf, transport.Unreliable))
	buf[0] = 'z'

	p, ok := b.Receive()
	require.True(t, ok)
	assert.Equal(t, "abc", string(p.Data))
}
