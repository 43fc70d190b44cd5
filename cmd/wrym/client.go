package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wick3dr0se/wrym/pkg/session"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect to a chat relay server",
	RunE:  runClient,
}

func init() {
	clientCmd.Flags().String("server", "", "Server address or URL (overrides config)")
	clientCmd.Flags().String("nick", "", "Display name")
	clientCmd.Flags().Bool("insecure", false, "Skip TLS certificate verification")
}

func defaultNick() string {
	return "guest-" + uuid.NewString()[:8]
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		cfg.Transport.Server = server
	}
	if insecure, _ := cmd.Flags().GetBool("insecure"); insecure {
		cfg.Transport.TLS.Insecure = true
	}
	nick, _ := cmd.Flags().GetString("nick")
	if nick == "" {
		nick = defaultNick()
	}

	zl, logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t, serverAddr, err := dialTransport(ctx, cfg.Transport, logger)
	if err != nil {
		return fmt.Errorf("dial %s %s: %w", cfg.Transport.Kind, cfg.Transport.Server, err)
	}

	cl, err := session.NewClient(session.ClientConfig{
		Transport:         t,
		ServerAddr:        serverAddr,
		Logger:            logger,
		KeepAliveInterval: cfg.Session.KeepAliveInterval,
		ServerTimeout:     cfg.Session.ServerTimeout,
		EventQueueSize:    cfg.Session.EventQueueSize,
		Reliable:          reliableConfig(cfg, logger),
	})
	if err != nil {
		return err
	}
	defer cl.Close()

	codec, err := newChatCodec()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	lines := make(chan string)
	go readLines(cmd.InOrStdin(), lines)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return clientLoop(ctx, cl, codec, nick, lines, out, cfg.Session.PollInterval, logger)
	})
	return g.Wait()
}

// readLines feeds non-empty input lines to lines and closes it at EOF.
// It is not tied to the errgroup since a blocked stdin read cannot be cancelled.
func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines <- line
		}
	}
}

func clientLoop(ctx context.Context, cl *session.Client, codec chatCodec, nick string, lines <-chan string, out io.Writer, interval time.Duration, logger wlog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			payload, err := codec.encode(ChatMessage{From: nick, Text: line, SentAt: time.Now().UTC()})
			if err != nil {
				return err
			}
			if err := cl.SendReliable(payload, true); err != nil {
				return err
			}

		case <-ticker.C:
			cl.Poll()
			for {
				ev, ok := cl.RecvEvent()
				if !ok {
					break
				}
				if done := printClientEvent(ev, codec, out, logger); done {
					return nil
				}
			}
		}
	}
}

// printClientEvent writes ev to out and reports whether the session ended.
func printClientEvent(ev session.ClientEvent, codec chatCodec, out io.Writer, logger wlog.Logger) bool {
	switch ev := ev.(type) {
	case session.Connected:
		fmt.Fprintf(out, "* connected as client %d\n", ev.ID)

	case session.Disconnected:
		fmt.Fprintf(out, "* disconnected: %s\n", ev.Reason)
		return true

	case session.ServerMessage:
		msg, err := codec.decode(ev.Payload)
		if err != nil {
			logger.Debug("Dropping undecodable chat message", "error", err)
			return false
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", msg.SentAt.Local().Format(time.TimeOnly), msg.From, msg.Text)
	}
	return false
}
