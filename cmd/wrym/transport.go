package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/wick3dr0se/wrym/pkg/config"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/transport/kcp"
	"github.com/wick3dr0se/wrym/pkg/transport/quic"
	"github.com/wick3dr0se/wrym/pkg/transport/tcp"
	"github.com/wick3dr0se/wrym/pkg/transport/tlsconf"
	"github.com/wick3dr0se/wrym/pkg/transport/udp"
	"github.com/wick3dr0se/wrym/pkg/transport/websocket"
	"github.com/wick3dr0se/wrym/pkg/transport/webtransport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

// listenTransport binds the server side of the configured medium.
func listenTransport(c config.TransportConfig, logger wlog.Logger) (transport.Transport, error) {
	switch c.Kind {
	case "udp":
		return udp.Listen(c.Listen, udp.Config{InboxSize: c.InboxSize, Logger: logger, DSCP: c.DSCP})

	case "tcp":
		return tcp.Listen(c.Listen, tcp.Config{InboxSize: c.InboxSize, Logger: logger})

	case "kcp":
		return kcp.Listen(c.Listen, kcp.Config{InboxSize: c.InboxSize, Logger: logger})

	case "quic":
		tlsConf, err := tlsconf.Server(c.TLS.CertFile, c.TLS.KeyFile, quic.ALPN)
		if err != nil {
			return nil, err
		}
		return quic.Listen(c.Listen, quic.Config{TLS: tlsConf, InboxSize: c.InboxSize, Logger: logger})

	case "webtransport":
		tlsConf, err := tlsconf.Server(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return nil, err
		}
		return webtransport.Listen(c.Listen, webtransport.Config{
			TLS:       tlsConf,
			InboxSize: c.InboxSize,
			Logger:    logger,
			Path:      c.WebTransport.Path,
		})

	case "websocket":
		return websocket.Listen(c.Listen, websocket.Config{
			InboxSize: c.InboxSize,
			Logger:    logger,
			Path:      c.WebSocket.Path,
		})
	}
	return nil, fmt.Errorf("unknown transport kind %q", c.Kind)
}

// dialTransport connects the client side of the configured medium. It returns
// the address under which the server is known to the transport.
func dialTransport(ctx context.Context, c config.TransportConfig, logger wlog.Logger) (transport.Transport, string, error) {
	switch c.Kind {
	case "udp":
		t, err := udp.Dial(c.Server, udp.Config{InboxSize: c.InboxSize, Logger: logger, DSCP: c.DSCP})
		return t, c.Server, err

	case "tcp":
		t, err := tcp.Dial(ctx, c.Server, tcp.Config{InboxSize: c.InboxSize, Logger: logger})
		return t, c.Server, err

	case "kcp":
		t, err := kcp.Dial(c.Server, kcp.Config{InboxSize: c.InboxSize, Logger: logger})
		return t, c.Server, err

	case "quic":
		t, err := quic.Dial(ctx, c.Server, quic.Config{
			TLS:       tlsconf.Client(c.TLS.Insecure, quic.ALPN),
			InboxSize: c.InboxSize,
			Logger:    logger,
		})
		return t, c.Server, err

	case "webtransport":
		url := withScheme(c.Server, "https", c.WebTransport.Path)
		t, err := webtransport.Dial(ctx, url, webtransport.Config{
			TLS:       tlsconf.Client(c.TLS.Insecure),
			InboxSize: c.InboxSize,
			Logger:    logger,
		})
		return t, url, err

	case "websocket":
		url := withScheme(c.Server, "ws", c.WebSocket.Path)
		t, err := websocket.Dial(ctx, url, websocket.Config{InboxSize: c.InboxSize, Logger: logger})
		return t, url, err
	}
	return nil, "", fmt.Errorf("unknown transport kind %q", c.Kind)
}

// withScheme turns host:port into scheme://host:port/path. Full URLs are
// returned unchanged.
func withScheme(server, scheme, path string) string {
	if strings.Contains(server, "://") {
		return server
	}
	return scheme + "://" + server + path
}
