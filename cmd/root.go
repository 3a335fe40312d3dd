// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/internal/observability"
)

// cfg holds the effective settings: flag defaults, then the config file,
// then explicitly set flags.
var cfg = defaultSettings()

var configPath string

// logger is initialized before any subcommand runs
var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "sextant",
	Short: "Half-duplex reliable request/response link tool",
	Long: `Sextant - A CLI tool for running and exercising the duplex request/response
protocol over a serial line or a WebSocket byte bridge.

Each side may send one request at a time. Requests are retransmitted after a
timeout, and duplicate requests are answered from a cached response so a
command is never executed twice.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  TCP:       --tcp host:port
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the SEXTANT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also be read from a TOML file with --config. Flags given on the
command line take precedence over the file.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: initSettings,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&cfg.Port, "port", "p", cfg.Port, "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&cfg.Baud, "baud", "b", cfg.Baud, "Baud rate (serial only)")

	// TCP byte bridge
	rootCmd.PersistentFlags().StringVar(&cfg.TCP, "tcp", cfg.TCP, "TCP byte bridge address (host:port)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&cfg.URL, "url", "u", cfg.URL, "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&cfg.Username, "username", cfg.Username, "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&cfg.NoSSLVerify, "no-ssl-verify", cfg.NoSSLVerify, "Skip TLS certificate verification (wss:// only)")

	// Engine flags
	rootCmd.PersistentFlags().IntVar(&cfg.TimeoutMs, "timeout-ms", cfg.TimeoutMs, "Retransmission timeout in milliseconds")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxAttempts, "attempts", cfg.MaxAttempts, "Transmissions per request, including the first")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxPayload, "max-payload", cfg.MaxPayload, "Maximum payload size in bytes")
	rootCmd.PersistentFlags().StringVar(&cfg.Name, "name", cfg.Name, "Node name reported by INFO")

	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file")
}

func initSettings(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		if err := loadConfigFile(configPath, &cfg, cmd.Flags()); err != nil {
			return err
		}
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	l, err := observability.InitLogger("sextant", cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
