package session

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Opcode is the one-byte tag in front of every session message.
type Opcode byte

const (
	OpConnect    Opcode = 1
	OpDisconnect Opcode = 2
	OpData       Opcode = 3
	// OpHeartbeat only proves liveness. Its body is ignored.
	OpHeartbeat Opcode = 4
)

func (o Opcode) String() string {
	switch o {
	case OpConnect:
		return "connect"
	case OpDisconnect:
		return "disconnect"
	case OpData:
		return "data"
	case OpHeartbeat:
		return "heartbeat"
	default:
		return fmt.Sprintf("opcode(%d)", byte(o))
	}
}

func (o Opcode) valid() bool {
	return o >= OpConnect && o <= OpHeartbeat
}

// Frame returns payload prefixed with o.
func (o Opcode) Frame(payload []byte) []byte {
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(o)
	copy(buf[1:], payload)
	return buf
}

var (
	errEmptyMessage  = errors.New("empty message")
	errUnknownOpcode = errors.New("unknown opcode")
	errEmptyData     = errors.New("data message without payload")
)

// parseMessage splits a framed session message. Data messages must carry a payload.
func parseMessage(msg []byte) (Opcode, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, errEmptyMessage
	}

	op := Opcode(msg[0])
	if !op.valid() {
		return op, nil, fmt.Errorf("%w %d", errUnknownOpcode, msg[0])
	}

	body := msg[1:]
	if op == OpData && len(body) == 0 {
		return op, nil, errEmptyData
	}
	return op, body, nil
}

// connectReply is the server's answer to a Connect: the opcode followed by the
// assigned identity as 4 little-endian bytes.
func connectReply(id uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], id)
	return OpConnect.Frame(buf[:])
}

func parseConnectReply(body []byte) (uint32, bool) {
	if len(body) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(body), true
}
