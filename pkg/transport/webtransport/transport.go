// Package webtransport implements transport.ReliableTransport on top of
// WebTransport sessions, which lets browser clients join a server.
package webtransport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/transport/streammux"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

const DefaultPath = "/wrym"

var ErrNoTLS = errors.New("webtransport: server needs a tls config")

type Config struct {
	TLS       *tls.Config
	QUIC      *quic.Config
	InboxSize int
	Logger    wlog.Logger

	// Path is the URL path upgrade requests are served on.
	Path string

	// CheckOrigin decides whether a browser origin may connect. Nil accepts all.
	CheckOrigin func(r *http.Request) bool
}

func (c Config) path() string {
	if c.Path == "" {
		return DefaultPath
	}
	return c.Path
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

func wrap(sess *webtransport.Session, logger wlog.Logger) transport.MessageConn {
	return streammux.New[*webtransport.Stream](sess, func() error {
		return sess.CloseWithError(0, "closed")
	}, logger)
}

// Server upgrades HTTP/3 requests to WebTransport sessions and addresses each
// session by the remote address of its request.
type Server struct {
	*transport.Hub

	wt     *webtransport.Server
	conn   net.PacketConn
	logger wlog.Logger

	closeOnce sync.Once
	serveDone chan struct{}
}

var _ transport.ReliableTransport = (*Server)(nil)

// Listen binds a UDP socket on addr and serves WebTransport on cfg.Path.
func Listen(addr string, cfg Config) (*Server, error) {
	if cfg.TLS == nil {
		return nil, ErrNoTLS
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	logger := wlog.OrNop(cfg.Logger)
	s := &Server{
		Hub:       transport.NewHub(cfg.InboxSize, logger),
		conn:      conn,
		logger:    logger,
		serveDone: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.path(), s.handleUpgrade)

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	s.wt = &webtransport.Server{
		H3: http3.Server{
			TLSConfig:  http3.ConfigureTLSConfig(cfg.TLS),
			QUICConfig: cfg.quicConfig(),
			Handler:    mux,
		},
		CheckOrigin: checkOrigin,
	}

	go func() {
		defer close(s.serveDone)
		if err := s.wt.Serve(conn); err != nil && !errors.Is(err, http.ErrServerClosed) && !s.IsClosed() {
			s.logger.Error("webtransport server stopped", "error", err)
		}
	}()

	return s, nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	sess, err := s.wt.Upgrade(w, r)
	if err != nil {
		s.logger.Debug("failed upgrading connection", "remote", r.RemoteAddr, "error", err)
		return
	}

	if err := s.Add(r.RemoteAddr, wrap(sess, s.logger)); err != nil {
		sess.CloseWithError(0, "server closing")
		return
	}

	// The session lives as long as the request.
	<-sess.Context().Done()
}

func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.Hub.Close()
		err = s.wt.Close()
		s.conn.Close()
		<-s.serveDone
	})
	return err
}

// Client is one WebTransport session to a server.
type Client struct {
	*transport.Hub
	url string
}

var _ transport.ReliableTransport = (*Client)(nil)

// Dial opens a session to url, e.g. https://localhost:4433/wrym. Inbound
// packets carry url as their address.
func Dial(ctx context.Context, url string, cfg Config) (*Client, error) {
	d := webtransport.Dialer{
		TLSClientConfig: cfg.TLS,
		QUICConfig:      cfg.quicConfig(),
	}

	rsp, sess, err := d.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if rsp != nil && rsp.Body != nil {
		rsp.Body.Close()
	}

	c := &Client{
		Hub: transport.NewHub(cfg.InboxSize, cfg.Logger),
		url: url,
	}
	if err := c.Add(url, wrap(sess, cfg.Logger)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) RemoteAddr() string {
	return c.url
}
