// Package config loads process configuration for the wrym command from YAML
// files and WRYM_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Kinds lists the supported transport kinds.
var Kinds = []string{"udp", "tcp", "kcp", "quic", "webtransport", "websocket"}

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Transport TransportConfig `mapstructure:"transport"`
	Session   SessionConfig   `mapstructure:"session"`
	Reliable  ReliableConfig  `mapstructure:"reliable"`
}

type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr or file paths
	Outputs []string `mapstructure:"outputs"`

	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls rotation of file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

type TransportConfig struct {
	Kind string `mapstructure:"kind"`
	// Listen is the bind address of the server.
	Listen string `mapstructure:"listen"`
	// Server is the address or URL a client connects to.
	Server    string `mapstructure:"server"`
	DSCP      int    `mapstructure:"dscp"`
	InboxSize int    `mapstructure:"inbox_size"`

	TLS          TLSConfig          `mapstructure:"tls"`
	WebTransport WebTransportConfig `mapstructure:"webtransport"`
	WebSocket    WebSocketConfig    `mapstructure:"websocket"`
}

type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	// Insecure skips server certificate verification on clients.
	Insecure bool `mapstructure:"insecure"`
}

type WebTransportConfig struct {
	Path string `mapstructure:"path"`
}

type WebSocketConfig struct {
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	ClientTimeout     time.Duration `mapstructure:"client_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`
	// ServerTimeout of 0 lets the session pick its default.
	ServerTimeout time.Duration `mapstructure:"server_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	EventQueueSize    int           `mapstructure:"event_queue_size"`
}

type ReliableConfig struct {
	RetransmitInterval time.Duration `mapstructure:"retransmit_interval"`
	MaxRetries         int           `mapstructure:"max_retries"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Transport: TransportConfig{
			Kind:         "udp",
			Listen:       "127.0.0.1:8080",
			Server:       "127.0.0.1:8080",
			InboxSize:    4096,
			WebTransport: WebTransportConfig{Path: "/wrym"},
			WebSocket:    WebSocketConfig{Path: "/wrym"},
		},
		Session: SessionConfig{
			ClientTimeout:     60 * time.Second,
			KeepAliveInterval: 15 * time.Second,
			PollInterval:      10 * time.Millisecond,
			EventQueueSize:    1024,
		},
		Reliable: ReliableConfig{
			RetransmitInterval: 200 * time.Millisecond,
			MaxRetries:         5,
		},
	}
}

// Load reads configuration from path, or from wrym.yaml in the usual places
// when path is empty. A missing file is not an error. Environment variables
// use the prefix WRYM with dots replaced by underscores, e.g.
// WRYM_TRANSPORT_KIND=quic.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WRYM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	v.SetDefault("transport.kind", cfg.Transport.Kind)
	v.SetDefault("transport.listen", cfg.Transport.Listen)
	v.SetDefault("transport.server", cfg.Transport.Server)
	v.SetDefault("transport.dscp", cfg.Transport.DSCP)
	v.SetDefault("transport.inbox_size", cfg.Transport.InboxSize)
	v.SetDefault("transport.tls.cert_file", cfg.Transport.TLS.CertFile)
	v.SetDefault("transport.tls.key_file", cfg.Transport.TLS.KeyFile)
	v.SetDefault("transport.tls.insecure", cfg.Transport.TLS.Insecure)
	v.SetDefault("transport.webtransport.path", cfg.Transport.WebTransport.Path)
	v.SetDefault("transport.websocket.path", cfg.Transport.WebSocket.Path)

	v.SetDefault("session.client_timeout", cfg.Session.ClientTimeout)
	v.SetDefault("session.keepalive_interval", cfg.Session.KeepAliveInterval)
	v.SetDefault("session.server_timeout", cfg.Session.ServerTimeout)
	v.SetDefault("session.poll_interval", cfg.Session.PollInterval)
	v.SetDefault("session.event_queue_size", cfg.Session.EventQueueSize)

	v.SetDefault("reliable.retransmit_interval", cfg.Reliable.RetransmitInterval)
	v.SetDefault("reliable.max_retries", cfg.Reliable.MaxRetries)

	if path == "" {
		path = os.Getenv("WRYM_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wrym")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".wrym"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	if !slices.Contains(Kinds, c.Transport.Kind) {
		return fmt.Errorf("invalid transport.kind: %q", c.Transport.Kind)
	}
	if c.Transport.DSCP < 0 || c.Transport.DSCP > 63 {
		return fmt.Errorf("invalid transport.dscp: %d", c.Transport.DSCP)
	}
	if (c.Transport.TLS.CertFile == "") != (c.Transport.TLS.KeyFile == "") {
		return errors.New("transport.tls needs both cert_file and key_file")
	}

	if c.Session.ClientTimeout <= 0 {
		return fmt.Errorf("invalid session.client_timeout: %s", c.Session.ClientTimeout)
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("invalid session.poll_interval: %s", c.Session.PollInterval)
	}
	if c.Reliable.RetransmitInterval <= 0 {
		return fmt.Errorf("invalid reliable.retransmit_interval: %s", c.Reliable.RetransmitInterval)
	}
	if c.Reliable.MaxRetries <= 0 {
		return fmt.Errorf("invalid reliable.max_retries: %d", c.Reliable.MaxRetries)
	}
	return nil
}
