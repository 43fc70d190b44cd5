package reliable

import (
	"time"

	"github.com/wick3dr0se/wrym/pkg/wlog"
)

const (
	DefaultRetransmitInterval = 200 * time.Millisecond
	DefaultMaxRetries         = 5
)

type Config struct {
	// RetransmitInterval is both the sweep period and the age after which an
	// unacknowledged message is sent again.
	RetransmitInterval time.Duration

	// MaxRetries is the number of retransmissions before a message is dropped.
	MaxRetries int

	Logger wlog.Logger

	// OnExhausted, if set, is called when a message is dropped after
	// MaxRetries retransmissions. It runs on the sweep goroutine.
	OnExhausted func(addr string, seq uint32)
}

func DefaultConfig() Config {
	return Config{
		RetransmitInterval: DefaultRetransmitInterval,
		MaxRetries:         DefaultMaxRetries,
	}
}

func (c Config) withDefaults() Config {
	if c.RetransmitInterval <= 0 {
		c.RetransmitInterval = DefaultRetransmitInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	c.Logger = wlog.OrNop(c.Logger)
	return c
}
