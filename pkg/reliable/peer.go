package reliable

import "time"

// streamKey names one sequence space towards a peer: every ordered channel
// has its own, and all unordered traffic shares one.
type streamKey struct {
	ordered bool
	channel uint8
}

func orderedStream(channel uint8) streamKey {
	return streamKey{ordered: true, channel: channel}
}

var unorderedStream = streamKey{}

func (k streamKey) dataKind() Kind {
	if k.ordered {
		return KindReliable
	}
	return KindReliableUnordered
}

func (k streamKey) ackKind() Kind {
	if k.ordered {
		return KindAck
	}
	return KindAckUnordered
}

type pendingKey struct {
	stream streamKey
	seq    uint32
}

type pendingEntry struct {
	frame    []byte
	lastSent time.Time
	retries  int
}

// reorderBuffer is the receive side of one ordered channel.
type reorderBuffer struct {
	expected uint32
	held     map[uint32][]byte
}

// accept stores seq and returns the payloads that became deliverable, in
// order. It reports false for duplicates.
func (b *reorderBuffer) accept(seq uint32, data []byte) ([][]byte, bool) {
	if seq < b.expected {
		return nil, false
	}
	if _, ok := b.held[seq]; ok {
		return nil, false
	}
	b.held[seq] = data

	var released [][]byte
	for {
		msg, ok := b.held[b.expected]
		if !ok {
			return released, true
		}
		delete(b.held, b.expected)
		b.expected++
		released = append(released, msg)
	}
}

// seenSet tracks delivered unordered sequences. Everything up to floor was
// delivered, above holds the delivered sequences past the first gap.
type seenSet struct {
	floor uint32
	above map[uint32]struct{}
}

// add records seq and reports false if it was already delivered.
func (s *seenSet) add(seq uint32) bool {
	if seq <= s.floor {
		return false
	}
	if _, ok := s.above[seq]; ok {
		return false
	}
	s.above[seq] = struct{}{}

	for {
		if _, ok := s.above[s.floor+1]; !ok {
			return true
		}
		s.floor++
		delete(s.above, s.floor)
	}
}

// peerState is everything the engine tracks for one remote address.
// It is guarded by Engine.mu.
type peerState struct {
	lastSeq map[streamKey]uint32
	pending map[pendingKey]*pendingEntry

	ordered   map[uint8]*reorderBuffer
	unordered seenSet
}

func newPeerState() *peerState {
	return &peerState{
		lastSeq:   make(map[streamKey]uint32),
		pending:   make(map[pendingKey]*pendingEntry),
		ordered:   make(map[uint8]*reorderBuffer),
		unordered: seenSet{above: make(map[uint32]struct{})},
	}
}

// nextSeq allocates the next outbound sequence number on stream. Sequences
// start at 1. Wraparound after 2^32 messages is not handled.
func (p *peerState) nextSeq(stream streamKey) uint32 {
	p.lastSeq[stream]++
	return p.lastSeq[stream]
}

func (p *peerState) channel(ch uint8) *reorderBuffer {
	b, ok := p.ordered[ch]
	if !ok {
		b = &reorderBuffer{expected: 1, held: make(map[uint32][]byte)}
		p.ordered[ch] = b
	}
	return b
}

// accept takes an inbound reliable message and returns the payloads ready for
// the application. It reports false for duplicates.
func (p *peerState) accept(stream streamKey, seq uint32, data []byte) ([][]byte, bool) {
	if stream.ordered {
		return p.channel(stream.channel).accept(seq, data)
	}
	if !p.unordered.add(seq) {
		return nil, false
	}
	return [][]byte{data}, true
}

// buffered counts ordered messages held back by a gap.
func (p *peerState) buffered() int {
	n := 0
	for _, b := range p.ordered {
		n += len(b.held)
	}
	return n
}
