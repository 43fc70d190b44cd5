package reliable

import (
	"encoding/binary"
	"fmt"
)

// Kind tags every frame the engine puts on the wire.
type Kind uint8

const (
	KindUnreliable Kind = iota
	KindReliable
	KindReliableUnordered
	KindAck
	KindAckUnordered
)

func (k Kind) String() string {
	switch k {
	case KindUnreliable:
		return "unreliable"
	case KindReliable:
		return "reliable"
	case KindReliableUnordered:
		return "reliable-unordered"
	case KindAck:
		return "ack"
	case KindAckUnordered:
		return "ack-unordered"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) hasSequence() bool {
	switch k {
	case KindReliable, KindReliableUnordered, KindAck, KindAckUnordered:
		return true
	}
	return false
}

const (
	kindSize    = 1
	channelSize = 1
	seqSize     = 4
	headerSize  = kindSize + channelSize + seqSize
)

// Header is the engine's per-frame metadata. Channel and Seq are unused for
// KindUnreliable, Channel is zero for the unordered kinds.
type Header struct {
	Kind    Kind
	Channel uint8
	Seq     uint32
}

// Encode lays out [kind][payload] for unreliable frames and
// [kind][channel][seq, big-endian][payload] for all others.
func Encode(h Header, payload []byte) []byte {
	if !h.Kind.hasSequence() {
		buf := make([]byte, kindSize+len(payload))
		buf[0] = byte(h.Kind)
		copy(buf[kindSize:], payload)
		return buf
	}

	buf := make([]byte, headerSize+len(payload))
	buf[0] = byte(h.Kind)
	buf[kindSize] = h.Channel
	binary.BigEndian.PutUint32(buf[kindSize+channelSize:], h.Seq)
	copy(buf[headerSize:], payload)
	return buf
}

// Decode splits a frame into its header and payload. The payload aliases frame.
func Decode(frame []byte) (Header, []byte, error) {
	if len(frame) < kindSize {
		return Header{}, nil, ErrMalformed
	}

	kind := Kind(frame[0])
	if kind == KindUnreliable {
		return Header{Kind: kind}, frame[kindSize:], nil
	}
	if !kind.hasSequence() {
		return Header{}, nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, frame[0])
	}
	if len(frame) < headerSize {
		return Header{}, nil, fmt.Errorf("%w: %s frame of %d bytes", ErrMalformed, kind, len(frame))
	}

	h := Header{
		Kind:    kind,
		Channel: frame[kindSize],
		Seq:     binary.BigEndian.Uint32(frame[kindSize+channelSize : headerSize]),
	}
	return h, frame[headerSize:], nil
}
