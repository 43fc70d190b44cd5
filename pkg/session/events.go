package session

import "fmt"

// DisconnectReason tells why a peer left.
type DisconnectReason int

const (
	// ReasonRequested means the remote side sent a Disconnect.
	ReasonRequested DisconnectReason = iota
	// ReasonTransportClosed means the medium reported the connection as closed.
	ReasonTransportClosed
	// ReasonTimedOut means the peer was silent for longer than the client timeout.
	ReasonTimedOut
	// ReasonSendFailed means a send to the peer failed.
	ReasonSendFailed
	// ReasonKicked means the server disconnected the client on purpose.
	ReasonKicked
	// ReasonClosed means the local side was closed.
	ReasonClosed
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonRequested:
		return "requested"
	case ReasonTransportClosed:
		return "transport closed"
	case ReasonTimedOut:
		return "timed out"
	case ReasonSendFailed:
		return "send failed"
	case ReasonKicked:
		return "kicked"
	case ReasonClosed:
		return "closed"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ==================================================================
// Server events
// ==================================================================

// ServerEvent is one of ClientConnected, ClientDisconnected or MessageReceived.
type ServerEvent interface {
	serverEvent()
}

type ClientConnected struct {
	ID   uint32
	Addr string
}

type ClientDisconnected struct {
	ID     uint32
	Addr   string
	Reason DisconnectReason
}

type MessageReceived struct {
	ID      uint32
	Payload []byte
}

func (ClientConnected) serverEvent()    {}
func (ClientDisconnected) serverEvent() {}
func (MessageReceived) serverEvent()    {}

// ==================================================================
// Client events
// ==================================================================

// ClientEvent is one of Connected, Disconnected or ServerMessage.
type ClientEvent interface {
	clientEvent()
}

type Connected struct {
	ID uint32
}

type Disconnected struct {
	Reason DisconnectReason
}

type ServerMessage struct {
	Payload []byte
}

func (Connected) clientEvent()     {}
func (Disconnected) clientEvent()  {}
func (ServerMessage) clientEvent() {}

// eventQueue is a FIFO with a soft capacity. Producers check full() before
// pulling more input so the queue stays bounded.
type eventQueue[E any] struct {
	items []E
	limit int
}

func (q *eventQueue[E]) push(e E) {
	q.items = append(q.items, e)
}

func (q *eventQueue[E]) pop() (E, bool) {
	var zero E
	if len(q.items) == 0 {
		return zero, false
	}
	e := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return e, true
}

func (q *eventQueue[E]) full() bool {
	return len(q.items) >= q.limit
}

func (q *eventQueue[E]) len() int {
	return len(q.items)
}
