package reliable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHeaderLayout tests the exact bytes of each frame kind
func TestHeaderLayout(t *testing.T) {
	assert.Equal(t, []byte{0, 'h', 'i'}, Encode(Header{Kind: KindUnreliable}, []byte("hi")))
	assert.Equal(t, []byte{1, 3, 0, 0, 1, 2, 'x'}, Encode(Header{Kind: KindReliable, Channel: 3, Seq: 258}, []byte("x")))
	assert.Equal(t, []byte{2, 0, 0, 0, 0, 7, 'y'}, Encode(Header{Kind: KindReliableUnordered, Seq: 7}, []byte("y")))
	assert.Equal(t, []byte{3, 5, 0xff, 0xff, 0xff, 0xff}, Encode(Header{Kind: KindAck, Channel: 5, Seq: 0xffffffff}, nil))
	assert.Equal(t, []byte{4, 0, 0, 0, 0, 1}, Encode(Header{Kind: KindAckUnordered, Seq: 1}, nil))
}

// TestHeaderDecode tests decoding including malformed input
func TestHeaderDecode(t *testing.T) {
	h, payload, err := Decode([]byte{1, 2, 0, 0, 0, 9, 'p'})
	require.NoError(t, err)
	assert.Equal(t, Header{Kind: KindReliable, Channel: 2, Seq: 9}, h)
	assert.Equal(t, []byte("p"), payload)

	h, payload, err = Decode([]byte{0})
	require.NoError(t, err)
	assert.Equal(t, KindUnreliable, h.Kind)
	assert.Empty(t, payload)

	for _, frame := range [][]byte{nil, {3, 0, 0}, {2}, {4, 0, 0, 0, 1}, {5, 0, 0, 0, 0, 1}} {
		_, _, err := Decode(frame)
		assert.ErrorIs(t, err, ErrMalformed, "frame %v", frame)
	}
}
