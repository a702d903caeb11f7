// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global transport flags, shared by every subcommand via OpenConnection.
	portName      string
	baudRate      int
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Global gateway flags.
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ramsesd",
	Short: "RAMSES-II heating gateway core",
	Long: `ramsesd attaches to a USB radio adapter (HGI80 or evofw3) and ingests a
bidirectional stream of RAMSES-II frames, exposing a queryable model of the
heating system and a command-issuing API with delivery guarantees.

Commands operate on a serial port (--port) or a WebSocket bridge (--url) as
the underlying byte-line transport; the gateway core itself owns none of the
port configuration, USB enumeration, or reconnect policy.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(logLevel)
	},
}

func configureLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(lvl).
		With().Timestamp().Str("component", "ramsesd").Logger()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device (HGI80/evofw3)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate")
	rootCmd.PersistentFlags().StringVar(&wsURL, "url", "", "WebSocket bridge URL (ws:// or wss://), alternative to --port")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "ws-user", "", "WebSocket bridge Basic-auth username")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "ws-no-verify", false, "Skip TLS certificate verification for wss://")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Gateway config YAML (max_zones, timeouts, throttles, known_devices)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
