package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFrameRoundTrip tests that frames survive a shared byte stream
func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.NoError(t, WriteFrame(&buf, []byte{}))
	require.NoError(t, WriteFrame(&buf, []byte("world")))

	assert.Equal(t, []byte{0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o'}, buf.Bytes()[:9])

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(first))

	empty, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Len(t, empty, 0)

	last, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(last))

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

// TestFrameTooBig tests that oversized length headers are rejected
func TestFrameTooBig(t *testing.T) {
	r := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, ErrFrameTooBig)
}

// TestFramePartial tests that a truncated frame reports an unexpected EOF
func TestFramePartial(t *testing.T) {
	r := bytes.NewReader([]byte{0, 0, 0, 4, 'a', 'b'})
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// TestInbox tests non-blocking push and receive
func TestInbox(t *testing.T) {
	in := NewInbox(2)

	assert.True(t, in.Push(Packet{Addr: "a", Data: []byte{1}}))
	assert.True(t, in.Push(Packet{Addr: "b", Data: []byte{2}}))
	assert.False(t, in.Push(Packet{Addr: "c", Data: []byte{3}}))
	assert.Equal(t, 2, in.Len())

	p, ok := in.Receive()
	require.True(t, ok)
	assert.Equal(t, "a", p.Addr)

	p, ok = in.Receive()
	require.True(t, ok)
	assert.Equal(t, "b", p.Addr)

	_, ok = in.Receive()
	assert.False(t, ok)
}

// TestReliabilityString tests the textual form used in logs
func TestReliabilityString(t *testing.T) {
	assert.Equal(t, "unreliable", Unreliable.String())
	assert.Equal(t, "reliable-unordered", ReliableUnordered.String())
	assert.Equal(t, "reliable-ordered(3)", ReliableOrdered(3).String())
	assert.False(t, Unreliable.IsReliable())
	assert.True(t, ReliableOrdered(0).IsReliable())
}

// TestPeerNotFound tests that a missing peer matches ErrUnreachable
func TestPeerNotFound(t *testing.T) {
	err := error(ErrPeerNotFound{Addr: "1.2.3.4:5"})
	assert.True(t, errors.Is(err, ErrUnreachable))
	assert.Equal(t, "peer 1.2.3.4:5 not found", err.Error())
	assert.True(t, Packet{Addr: "x"}.IsCloseSignal())
}
