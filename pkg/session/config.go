package session

import (
	"time"

	"github.com/wick3dr0se/wrym/pkg/reliable"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

const (
	DefaultClientTimeout     = 60 * time.Second
	DefaultKeepAliveInterval = 15 * time.Second
	DefaultEventQueueSize    = 1024

	// ControlChannel carries connection lifecycle messages.
	ControlChannel uint8 = 0
	// DefaultChannel is used by Client.SendReliable for ordered data.
	DefaultChannel uint8 = 1
)

type ServerConfig struct {
	// Transport is owned by the server from now on and closed by Server.Close.
	Transport transport.Transport
	Logger    wlog.Logger

	// ClientTimeout is how long a client may stay silent before it is evicted.
	ClientTimeout time.Duration

	// EventQueueSize bounds the number of events buffered between polls.
	EventQueueSize int

	// Reliable configures the delivery engine that is interposed when the
	// transport has no reliable capability of its own.
	Reliable reliable.Config
}

type ClientConfig struct {
	// Transport is owned by the client from now on and closed by Client.Close.
	Transport  transport.Transport
	ServerAddr string
	Logger     wlog.Logger

	// KeepAliveInterval is the longest the client stays quiet, or goes without
	// hearing from the server, before it sends a heartbeat. Zero selects the
	// default, a negative value disables it.
	KeepAliveInterval time.Duration

	// ServerTimeout is how long the server may stay silent before the client
	// gives up. Zero selects DefaultClientTimeout, a negative value disables
	// it. It is disabled by default when heartbeats are.
	ServerTimeout time.Duration

	EventQueueSize int
	Reliable       reliable.Config
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = DefaultClientTimeout
	}
	if c.EventQueueSize <= 0 {
		c.EventQueueSize = DefaultEventQueueSize
	}
	c.Logger = wlog.OrNop(c.Logger)
	if c.Reliable.Logger == nil {
		c.Reliable.Logger = c.Logger
	}
	return c
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.ServerTimeout == 0 {
		c.ServerTimeout = DefaultClientTimeout
		if c.KeepAliveInterval < 0 {
			c.ServerTimeout = -1
		}
	}
	if c.EventQueueSize <= 0 {
		c.EventQueueSize = DefaultEventQueueSize
	}
	c.Logger = wlog.OrNop(c.Logger)
	if c.Reliable.Logger == nil {
		c.Reliable.Logger = c.Logger
	}
	return c
}

// reliableOver returns t itself if it is natively reliable, otherwise t
// wrapped in a delivery engine.
func reliableOver(t transport.Transport, cfg reliable.Config) (transport.ReliableTransport, *reliable.Engine) {
	if rt, ok := transport.AsReliable(t); ok {
		return rt, nil
	}
	e := reliable.NewEngine(t, cfg)
	return e, e
}
