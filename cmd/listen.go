// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/internal/observability"
	"github.com/Thermoquad/sextant/pkg/duplex"
)

var (
	listenStatsInterval int
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Answer peer requests from the command catalog",
	Long: `Run the link and answer every request the peer sends.

Requests are dispatched to the built-in catalog (PING, ECHO, INFO, STATS).
Duplicate requests are answered from the cached response without running the
command again. Engine events are logged at debug level; use --log-level debug
to see every dispatch, replay and retransmission.

With --metrics-addr a status endpoint serves /health, /stats and Prometheus
/metrics.

Press Ctrl+C to exit.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().IntVar(&listenStatsInterval, "stats-interval", 10, "Statistics display interval in seconds (0 disables)")
	listenCmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Status endpoint address (e.g. :9100)")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := startSession(ctx, nil)
	if err != nil {
		return err
	}
	defer s.close()

	fmt.Printf("Sextant - Listen\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Node: %s | Timeout: %d ms | Attempts: %d\n", cfg.Name, cfg.TimeoutMs, cfg.MaxAttempts)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if cfg.MetricsAddr != "" {
		router := observability.NewRouter(cfg.Name, logger, s.link.Stats)
		go func() {
			if err := observability.Serve(ctx, cfg.MetricsAddr, router, logger); err != nil {
				logger.Error().Err(err).Msg("status endpoint failed")
			}
		}()
	}

	var tick <-chan time.Time
	if listenStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(listenStatsInterval) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			printFinalStats(s.link)
			return nil

		case err := <-s.done():
			if err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("link stopped")
				return fmt.Errorf("link stopped: %v", err)
			}
			return nil

		case <-tick:
			stats, err := s.link.Stats(ctx)
			if err != nil {
				continue
			}
			fmt.Print(stats.String())
		}
	}
}

func printFinalStats(link *duplex.Link) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if stats, err := link.Stats(ctx); err == nil {
		fmt.Printf("\n%s", stats.String())
	}
}
