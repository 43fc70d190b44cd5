// Package kcp runs length-prefixed frames over KCP sessions.
//
// KCP provides ordered, reliable delivery on top of UDP, so sessions use it
// without the reliable engine. KCP has no connection teardown: a peer that
// goes away is only noticed by the session timeout.
package kcp

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
	kcpgo "github.com/xtaci/kcp-go/v5"
)

type Config struct {
	InboxSize int
	Logger    wlog.Logger

	// WindowSize is the send and receive window in packets. Zero selects 256.
	WindowSize int
}

func (c Config) window() int {
	if c.WindowSize <= 0 {
		return 256
	}
	return c.WindowSize
}

// tune puts a session in the low latency profile and switches it to stream
// mode so frames are not bounded by the KCP segment size.
func tune(s *kcpgo.UDPSession, cfg Config) {
	s.SetStreamMode(true)
	s.SetNoDelay(1, 10, 2, 1)
	s.SetWindowSize(cfg.window(), cfg.window())
	s.SetACKNoDelay(true)
}

type Server struct {
	*transport.Hub

	listener   *kcpgo.Listener
	cfg        Config
	logger     wlog.Logger
	closeOnce  sync.Once
	acceptDone chan struct{}
}

var _ transport.ReliableTransport = (*Server)(nil)

func Listen(addr string, cfg Config) (*Server, error) {
	l, err := kcpgo.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, err
	}

	logger := wlog.OrNop(cfg.Logger)
	s := &Server{
		Hub:        transport.NewHub(cfg.InboxSize, logger),
		listener:   l,
		cfg:        cfg,
		logger:     logger,
		acceptDone: make(chan struct{}),
	}

	go s.acceptConnections()
	return s, nil
}

func (s *Server) acceptConnections() {
	defer close(s.acceptDone)

	for {
		sess, err := s.listener.AcceptKCP()
		if err != nil {
			if s.IsClosed() || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			s.logger.Warn("failed accepting kcp session", "error", err)
			continue
		}

		tune(sess, s.cfg)
		if err := s.Add(sess.RemoteAddr().String(), transport.NewFrameConn(sess)); err != nil {
			return
		}
	}
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.Hub.Close()
		err = s.listener.Close()
		<-s.acceptDone
	})
	return err
}

type Client struct {
	*transport.Hub
	addr string
}

var _ transport.ReliableTransport = (*Client)(nil)

func Dial(addr string, cfg Config) (*Client, error) {
	sess, err := kcpgo.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	tune(sess, cfg)

	c := &Client{
		Hub:  transport.NewHub(cfg.InboxSize, cfg.Logger),
		addr: addr,
	}
	if err := c.Add(addr, transport.NewFrameConn(sess)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) RemoteAddr() string {
	return c.addr
}
