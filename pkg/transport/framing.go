package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds the payload of a single length-prefixed frame.
const MaxFrameSize = 1 << 24

// WriteFrame writes data prefixed with its length as a 4-byte big-endian integer.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooBig
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooBig, n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// FrameConn carries messages over a byte stream as length-prefixed frames.
type FrameConn struct {
	rwc io.ReadWriteCloser
	r   *bufio.Reader
}

var _ MessageConn = (*FrameConn)(nil)

func NewFrameConn(rwc io.ReadWriteCloser) *FrameConn {
	return &FrameConn{rwc: rwc, r: bufio.NewReader(rwc)}
}

func (c *FrameConn) ReadMessage() ([]byte, error) {
	return ReadFrame(c.r)
}

// WriteMessage ignores r: a byte stream is reliable and ordered.
func (c *FrameConn) WriteMessage(data []byte, _ Reliability) error {
	return WriteFrame(c.rwc, data)
}

func (c *FrameConn) Close() error {
	return c.rwc.Close()
}
