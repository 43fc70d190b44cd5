// Command wrym runs a chat relay server or client on any of the supported
// transports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wick3dr0se/wrym/pkg/config"
	"github.com/wick3dr0se/wrym/pkg/observability"
	"github.com/wick3dr0se/wrym/pkg/reliable"
	"github.com/wick3dr0se/wrym/pkg/wlog"
	zapadapter "github.com/wick3dr0se/wrym/pkg/wlog/zap_adapter"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "wrym",
	Short:         "Realtime multiplayer networking over pluggable transports",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "wrym", version)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("transport", "", "Transport kind: udp, tcp, kcp, quic, webtransport, websocket")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if kind, _ := cmd.Flags().GetString("transport"); kind != "" {
		cfg.Transport.Kind = kind
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) (*zap.Logger, wlog.Logger, error) {
	zl, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return zl, zapadapter.New(zl), nil
}

func reliableConfig(cfg *config.Config, logger wlog.Logger) reliable.Config {
	return reliable.Config{
		RetransmitInterval: cfg.Reliable.RetransmitInterval,
		MaxRetries:         cfg.Reliable.MaxRetries,
		Logger:             logger,
	}
}
