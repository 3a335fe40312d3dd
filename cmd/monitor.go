// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/internal/observability"
	"github.com/Thermoquad/sextant/pkg/duplex"
)

// eventBufferSize bounds the events queued between the engine and the TUI
const eventBufferSize = 256

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for the link",
	Long: `Run the link in an interactive terminal UI.

The node answers peer requests from the command catalog while the UI shows
statistics, the outstanding send and a live event log.

Keys:
  i       Enter a request as "CMD [HEX PAYLOAD]" (e.g. "02 de ad")
  p       Send PING
  R       Reset the engine
  q       Quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Status endpoint address (e.g. :9100)")
}

// eventQueue hands engine events to the TUI without ever blocking the link
type eventQueue struct {
	ch      chan duplex.Event
	dropped atomic.Uint64
}

func newEventQueue(size int) *eventQueue {
	return &eventQueue{ch: make(chan duplex.Event, size)}
}

func (q *eventQueue) push(ev duplex.Event) {
	select {
	case q.ch <- ev:
	default:
		q.dropped.Add(1)
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logs would corrupt the alternate screen
	logger = logger.Level(zerolog.Disabled)

	events := newEventQueue(eventBufferSize)
	s, err := startSession(ctx, events.push)
	if err != nil {
		return err
	}
	defer s.close()

	if cfg.MetricsAddr != "" {
		router := observability.NewRouter(cfg.Name, logger, s.link.Stats)
		go observability.Serve(ctx, cfg.MetricsAddr, router, logger)
	}

	m := initialMonitorModel(s.link, s.catalog, s.connInfo, events)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events.ch:
				p.Send(engineEventMsg(ev))
			case err := <-s.done():
				p.Send(linkStoppedMsg{err: err})
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
