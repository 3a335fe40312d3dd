// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/pkg/catalog"
)

var (
	pingCount    int
	pingInterval int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send PING requests to the peer",
	Long: `Send PING requests and wait for each response.

The peer answers with its uptime. Round-trip time includes any
retransmissions needed before the response arrived.

This is useful for verifying:
  - The connection is established
  - The peer is running the protocol engine
  - Requests and responses flow in both directions

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().IntVar(&pingInterval, "interval", 100, "Delay between pings in milliseconds")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount <= 0 {
		return fmt.Errorf("count must be positive, got %d", pingCount)
	}

	s, err := startSession(context.Background(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.close()

	fmt.Printf("Sextant - Ping\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Timeout: %d ms x %d attempts\n", cfg.TimeoutMs, cfg.MaxAttempts)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	retried := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		call, err := s.call(context.Background(), catalog.CmdPing, nil)
		switch {
		case err != nil:
			fmt.Printf("SEND FAILED: %v\n", err)
		case call.Err != nil:
			fmt.Printf("FAILED after %d attempts: %v\n", call.Attempts, call.Err)
		default:
			successCount++
			if call.Attempts > 1 {
				retried++
			}
			fmt.Printf("%s, tag=0x%02X, attempts=%d, rtt=%v\n",
				s.catalog.FormatReply(catalog.CmdPing, call.Reply), call.Tag, call.Attempts, call.RTT().Round(time.Millisecond))
		}

		if i < pingCount {
			time.Sleep(time.Duration(pingInterval) * time.Millisecond)
		}
	}

	failCount := pingCount - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss, %d needed retransmission\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100, retried)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
