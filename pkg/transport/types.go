// Package transport defines the minimal capabilities a network medium has to
// provide so that sessions can run on top of it.
//
// Every medium implements Transport. Media that guarantee delivery on their own
// (TCP, QUIC streams, WebSockets, KCP) additionally implement ReliableTransport.
// For media that only move best-effort datagrams, package reliable supplies
// the guarantee on top.
package transport

import "fmt"

// Mode selects the delivery guarantee of a single message.
type Mode uint8

const (
	ModeUnreliable Mode = iota
	ModeReliableUnordered
	ModeReliableOrdered
)

func (m Mode) String() string {
	switch m {
	case ModeUnreliable:
		return "unreliable"
	case ModeReliableUnordered:
		return "reliable-unordered"
	case ModeReliableOrdered:
		return "reliable-ordered"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Reliability is the delivery guarantee requested for a message. Channel is
// only meaningful for ModeReliableOrdered.
type Reliability struct {
	Mode    Mode
	Channel uint8
}

var (
	Unreliable        = Reliability{Mode: ModeUnreliable}
	ReliableUnordered = Reliability{Mode: ModeReliableUnordered}
)

// ReliableOrdered returns the ordered reliability on the given channel.
func ReliableOrdered(channel uint8) Reliability {
	return Reliability{Mode: ModeReliableOrdered, Channel: channel}
}

// IsReliable reports whether the message must be delivered.
func (r Reliability) IsReliable() bool {
	return r.Mode != ModeUnreliable
}

func (r Reliability) String() string {
	if r.Mode == ModeReliableOrdered {
		return fmt.Sprintf("%s(%d)", r.Mode, r.Channel)
	}
	return r.Mode.String()
}

// Packet is one complete inbound message. A Packet with empty Data signals
// that the medium lost its connection to Addr.
type Packet struct {
	Addr string
	Data []byte
}

// IsCloseSignal reports whether p announces a transport level disconnect.
func (p Packet) IsCloseSignal() bool {
	return len(p.Data) == 0
}

// Transport is the capability every medium provides.
type Transport interface {
	// Poll drives internal housekeeping such as accepting new connections.
	// It must not block.
	Poll()

	// Receive returns at most one buffered inbound message. It never blocks.
	Receive() (Packet, bool)

	// Send transmits data to addr. Media without native reliability may
	// ignore r and send best-effort.
	Send(addr string, data []byte, r Reliability) error
}

// ReliableTransport is implemented by media that guarantee delivery on their own.
type ReliableTransport interface {
	Transport

	// SendReliable delivers data to addr. Ordered messages on the same
	// channel arrive in the order they were sent.
	SendReliable(addr string, data []byte, ordered bool, channel uint8) error
}

// PeerCloser is implemented by media that keep per-peer state which has to be
// released when a session tears a peer down.
type PeerCloser interface {
	ClosePeer(addr string) error
}

// AsReliable reports whether t provides the reliable capability.
func AsReliable(t Transport) (ReliableTransport, bool) {
	rt, ok := t.(ReliableTransport)
	return rt, ok
}

// SendWith routes a send through the reliable capability when r asks for it.
func SendWith(t ReliableTransport, addr string, data []byte, r Reliability) error {
	switch r.Mode {
	case ModeReliableOrdered:
		return t.SendReliable(addr, data, true, r.Channel)
	case ModeReliableUnordered:
		return t.SendReliable(addr, data, false, 0)
	default:
		return t.Send(addr, data, r)
	}
}

//go:generate mockgen -destination=transportmock/transport.go -package=transportmock . Transport,ReliableTransport
