package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wick3dr0se/wrym/pkg/session"
	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
)

const statsInterval = 30 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the chat relay server",
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().String("listen", "", "Listen address (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Transport.Listen = listen
	}

	zl, logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer zl.Sync()

	t, err := listenTransport(cfg.Transport, logger)
	if err != nil {
		return fmt.Errorf("listen %s on %s: %w", cfg.Transport.Kind, cfg.Transport.Listen, err)
	}

	srv, err := session.NewServer(session.ServerConfig{
		Transport:      t,
		Logger:         logger,
		ClientTimeout:  cfg.Session.ClientTimeout,
		EventQueueSize: cfg.Session.EventQueueSize,
		Reliable:       reliableConfig(cfg, logger),
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	codec, err := newChatCodec()
	if err != nil {
		return err
	}

	logger.Info("Server started", "transport", cfg.Transport.Kind, "listen", cfg.Transport.Listen)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveLoop(ctx, srv, codec, cfg.Session.PollInterval, logger)
	})
	g.Go(func() error {
		return logStats(ctx, srv, logger)
	})

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}

func serveLoop(ctx context.Context, srv *session.Server, codec chatCodec, interval time.Duration, logger wlog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		srv.Poll()
		for {
			ev, ok := srv.RecvEvent()
			if !ok {
				break
			}
			handleServerEvent(srv, codec, ev, logger)
		}
	}
}

func handleServerEvent(srv *session.Server, codec chatCodec, ev session.ServerEvent, logger wlog.Logger) {
	switch ev := ev.(type) {
	case session.ClientConnected:
		logger.Info("Client connected", "id", ev.ID, "addr", ev.Addr)

	case session.ClientDisconnected:
		logger.Info("Client disconnected", "id", ev.ID, "addr", ev.Addr, "reason", ev.Reason)

	case session.MessageReceived:
		msg, err := codec.decode(ev.Payload)
		if err != nil {
			logger.Debug("Dropping undecodable chat message", "id", ev.ID, "error", err)
			return
		}
		logger.Debug("Relaying chat message", "id", ev.ID, "from", msg.From)
		srv.BroadcastExcept(ev.Payload, transport.ReliableOrdered(session.DefaultChannel), ev.ID)
	}
}

func logStats(ctx context.Context, srv *session.Server, logger wlog.Logger) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		kv := []any{"clients", len(srv.Clients())}
		if e := srv.Engine(); e != nil {
			st := e.Stats()
			kv = append(kv,
				"pending", st.Pending,
				"buffered", st.Buffered,
				"retransmissions", st.Retransmissions,
				"exhausted", st.Exhausted,
			)
		}
		logger.Info("Server stats", kv...)
	}
}
