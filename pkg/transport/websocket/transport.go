// Package websocket implements transport.ReliableTransport over WebSocket
// connections, one binary message per session message.
package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

const (
	DefaultPath         = "/wrym"
	DefaultWriteTimeout = 5 * time.Second
)

type Config struct {
	InboxSize int
	Logger    wlog.Logger

	Path         string
	WriteTimeout time.Duration

	// CheckOrigin decides whether a browser origin may connect. Nil accepts all.
	CheckOrigin func(r *http.Request) bool
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	c.Logger = wlog.OrNop(c.Logger)
	return c
}

// conn adapts a WebSocket connection to transport.MessageConn.
type conn struct {
	ws           *ws.Conn
	writeTimeout time.Duration
}

func (c *conn) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == ws.BinaryMessage || kind == ws.TextMessage {
			return data, nil
		}
	}
}

// WriteMessage ignores r: a WebSocket is reliable and ordered.
func (c *conn) WriteMessage(data []byte, _ transport.Reliability) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(ws.BinaryMessage, data)
}

func (c *conn) Close() error {
	c.ws.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.ws.Close()
}

// Server serves WebSocket upgrades and addresses each peer by the remote
// address of its request.
type Server struct {
	*transport.Hub

	listener net.Listener
	http     *http.Server
	upgrader ws.Upgrader
	cfg      Config

	closeOnce sync.Once
	serveDone chan struct{}
}

var _ transport.ReliableTransport = (*Server)(nil)

func Listen(addr string, cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Hub:       transport.NewHub(cfg.InboxSize, cfg.Logger),
		listener:  l,
		upgrader:  ws.Upgrader{CheckOrigin: cfg.CheckOrigin},
		cfg:       cfg,
		serveDone: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleUpgrade)
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		defer close(s.serveDone)
		if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cfg.Logger.Error("websocket server stopped", "error", err)
		}
	}()

	return s, nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Debug("failed upgrading connection", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.Add(r.RemoteAddr, &conn{ws: c, writeTimeout: s.cfg.WriteTimeout})
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.http.Close()
		<-s.serveDone
		s.Hub.Close()
	})
	return err
}

// Client is one WebSocket connection to a server.
type Client struct {
	*transport.Hub
	url string
}

var _ transport.ReliableTransport = (*Client)(nil)

// Dial connects to url, e.g. ws://localhost:8080/wrym. Inbound packets carry
// url as their address.
func Dial(ctx context.Context, url string, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	c, rsp, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if rsp != nil && rsp.Body != nil {
		rsp.Body.Close()
	}

	cl := &Client{
		Hub: transport.NewHub(cfg.InboxSize, cfg.Logger),
		url: url,
	}
	if err := cl.Add(url, &conn{ws: c, writeTimeout: cfg.WriteTimeout}); err != nil {
		return nil, err
	}
	return cl, nil
}

func (c *Client) RemoteAddr() string {
	return c.url
}
