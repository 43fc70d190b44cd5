// Package streammux adapts multiplexed QUIC style sessions to
// transport.MessageConn.
//
// Unreliable messages travel as datagrams. Ordered messages share one stream
// per channel, so channels do not block each other. Every unordered message
// gets a fresh stream. All streams carry length-prefixed frames.
package streammux

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

// Session is the part of a QUIC connection or WebTransport session the
// multiplexer needs.
type Session[S io.ReadWriteCloser] interface {
	AcceptStream(ctx context.Context) (S, error)
	OpenStreamSync(ctx context.Context) (S, error)
	SendDatagram(b []byte) error
	ReceiveDatagram(ctx context.Context) ([]byte, error)
	Context() context.Context
}

type Conn[S io.ReadWriteCloser] struct {
	sess    Session[S]
	closeFn func() error
	logger  wlog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	incoming chan []byte

	streamMu sync.Mutex
	channels map[uint8]S

	closeOnce sync.Once
}

var _ transport.MessageConn = (*Conn[io.ReadWriteCloser])(nil)

// New starts reading streams and datagrams from sess. closeFn tears the
// underlying session down.
func New[S io.ReadWriteCloser](sess Session[S], closeFn func() error, logger wlog.Logger) *Conn[S] {
	ctx, cancel := context.WithCancel(sess.Context())

	c := &Conn[S]{
		sess:     sess,
		closeFn:  closeFn,
		logger:   wlog.OrNop(logger),
		ctx:      ctx,
		cancel:   cancel,
		incoming: make(chan []byte, 64),
		channels: make(map[uint8]S),
	}

	go c.acceptStreams()
	go c.datagramPump()
	return c
}

func (c *Conn[S]) deliver(msg []byte) bool {
	select {
	case c.incoming <- msg:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Conn[S]) acceptStreams() {
	for {
		stream, err := c.sess.AcceptStream(c.ctx)
		if err != nil {
			return
		}
		go c.handleStream(stream)
	}
}

func (c *Conn[S]) handleStream(stream S) {
	defer stream.Close()

	r := bufio.NewReader(stream)
	for {
		msg, err := transport.ReadFrame(r)
		if err != nil {
			if err != io.EOF {
				c.logger.Debug("stream read failed", "error", err)
			}
			return
		}
		if !c.deliver(msg) {
			return
		}
	}
}

func (c *Conn[S]) datagramPump() {
	for {
		msg, err := c.sess.ReceiveDatagram(c.ctx)
		if err != nil {
			return
		}
		if !c.deliver(msg) {
			return
		}
	}
}

// ReadMessage returns the next message from any stream or datagram. It fails
// once the session is gone.
func (c *Conn[S]) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.incoming:
		return msg, nil
	case <-c.ctx.Done():
		if err := context.Cause(c.sess.Context()); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}

func (c *Conn[S]) WriteMessage(data []byte, r transport.Reliability) error {
	switch r.Mode {
	case transport.ModeReliableOrdered:
		return c.writeOrdered(r.Channel, data)
	case transport.ModeReliableUnordered:
		return c.writeOnce(data)
	default:
		if err := c.sess.SendDatagram(data); err != nil {
			// Datagrams may be disabled or too small for data.
			c.logger.Debug("datagram failed, using a stream", "error", err)
			return c.writeOnce(data)
		}
		return nil
	}
}

func (c *Conn[S]) writeOrdered(channel uint8, data []byte) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	stream, ok := c.channels[channel]
	if !ok {
		var err error
		stream, err = c.sess.OpenStreamSync(c.ctx)
		if err != nil {
			return err
		}
		c.channels[channel] = stream
	}

	if err := transport.WriteFrame(stream, data); err != nil {
		delete(c.channels, channel)
		stream.Close()
		return err
	}
	return nil
}

func (c *Conn[S]) writeOnce(data []byte) error {
	stream, err := c.sess.OpenStreamSync(c.ctx)
	if err != nil {
		return err
	}
	if err := transport.WriteFrame(stream, data); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

func (c *Conn[S]) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.closeFn()
	})
	return err
}
