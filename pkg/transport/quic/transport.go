// Package quic implements transport.ReliableTransport using quic-go.
//
// Each peer is one QUIC connection. Unreliable messages are sent as
// datagrams, reliable ones on streams (see package streammux).
package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/transport/streammux"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

// ALPN is the application protocol negotiated by server and client.
const ALPN = "wrym"

const (
	codeNoError quic.ApplicationErrorCode = 0x0
	codeClosing quic.ApplicationErrorCode = 0xa
)

type Config struct {
	TLS       *tls.Config
	QUIC      *quic.Config
	InboxSize int
	Logger    wlog.Logger
}

// quicConfig returns a copy of c.QUIC with datagrams enabled.
func (c Config) quicConfig() *quic.Config {
	qc := &quic.Config{}
	if c.QUIC != nil {
		qc = c.QUIC.Clone()
	}
	qc.EnableDatagrams = true
	return qc
}

func (c Config) tlsConfig() *tls.Config {
	tc := &tls.Config{}
	if c.TLS != nil {
		tc = c.TLS.Clone()
	}
	if len(tc.NextProtos) == 0 {
		tc.NextProtos = []string{ALPN}
	}
	return tc
}

func wrap(conn *quic.Conn, logger wlog.Logger) transport.MessageConn {
	return streammux.New[*quic.Stream](conn, func() error {
		return conn.CloseWithError(codeNoError, "closed")
	}, logger)
}

// Server accepts QUIC connections and addresses each by its remote address.
type Server struct {
	*transport.Hub

	listener *quic.Listener
	logger   wlog.Logger

	cancel     context.CancelFunc
	closeOnce  sync.Once
	acceptDone chan struct{}
}

var _ transport.ReliableTransport = (*Server)(nil)

// Listen binds addr. cfg.TLS must carry a certificate.
func Listen(addr string, cfg Config) (*Server, error) {
	l, err := quic.ListenAddr(addr, cfg.tlsConfig(), cfg.quicConfig())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := wlog.OrNop(cfg.Logger)

	s := &Server{
		Hub:        transport.NewHub(cfg.InboxSize, logger),
		listener:   l,
		logger:     logger,
		cancel:     cancel,
		acceptDone: make(chan struct{}),
	}

	go s.acceptConnections(ctx)
	return s, nil
}

func (s *Server) acceptConnections(ctx context.Context) {
	defer close(s.acceptDone)

	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				return
			}
			s.logger.Warn("failed accepting connection", "error", err)
			continue
		}

		if err := s.Add(conn.RemoteAddr().String(), wrap(conn, s.logger)); err != nil {
			conn.CloseWithError(codeClosing, "server closing")
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
		s.cancel()
		err = s.listener.Close()
		<-s.acceptDone
		s.Hub.Close()
	})
	return err
}

// Client is one QUIC connection to a server.
type Client struct {
	*transport.Hub
	addr string
}

var _ transport.ReliableTransport = (*Client)(nil)

// Dial connects to addr. Inbound packets carry addr as their address.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	conn, err := quic.DialAddr(ctx, addr, cfg.tlsConfig(), cfg.quicConfig())
	if err != nil {
		return nil, err
	}

	c := &Client{
		Hub:  transport.NewHub(cfg.InboxSize, cfg.Logger),
		addr: addr,
	}
	if err := c.Add(addr, wrap(conn, cfg.Logger)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) RemoteAddr() string {
	return c.addr
}
