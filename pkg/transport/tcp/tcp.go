// Package tcp carries messages over TCP streams as length-prefixed frames.
//
// TCP already guarantees ordered delivery, so both the Server and the Client
// implement transport.ReliableTransport and sessions use them without the
// reliable engine.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

type Config struct {
	// InboxSize bounds the number of messages buffered between polls.
	InboxSize int
	Logger    wlog.Logger
}

// Server accepts TCP connections and addresses each peer by its remote address.
type Server struct {
	*transport.Hub

	listener   net.Listener
	logger     wlog.Logger
	closeOnce  sync.Once
	acceptDone chan struct{}
}

var _ transport.ReliableTransport = (*Server)(nil)

// Listen binds addr and starts accepting connections.
func Listen(addr string, cfg Config) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	logger := wlog.OrNop(cfg.Logger)
	s := &Server{
		Hub:        transport.NewHub(cfg.InboxSize, logger),
		listener:   l,
		logger:     logger,
		acceptDone: make(chan struct{}),
	}

	go s.acceptConnections()
	return s, nil
}

func (s *Server) acceptConnections() {
	defer close(s.acceptDone)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.IsClosed() {
				return
			}
			s.logger.Warn("failed accepting connection", "error", err)
			continue
		}

		if err := s.Add(conn.RemoteAddr().String(), transport.NewFrameConn(conn)); err != nil {
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
		err = s.listener.Close()
		<-s.acceptDone
		s.Hub.Close()
	})
	return err
}

// Client is a single TCP connection to a server. Inbound packets carry the
// address the client was dialed with.
type Client struct {
	*transport.Hub
	addr string
}

var _ transport.ReliableTransport = (*Client)(nil)

// Dial connects to addr.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		Hub:  transport.NewHub(cfg.InboxSize, cfg.Logger),
		addr: addr,
	}
	if err := c.Add(addr, transport.NewFrameConn(conn)); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoteAddr is the address the client was dialed with.
func (c *Client) RemoteAddr() string {
	return c.addr
}
