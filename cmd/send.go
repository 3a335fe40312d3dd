// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

var (
	sendCommand uint8
	sendHex     string
	sendText    string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one request and print the response",
	Long: `Send a single request and wait for its response.

The request is retransmitted after each timeout until the attempt budget is
used up. The reply of a built-in catalog command is decoded; any other reply
is printed as hex.

Exit codes:
  0 - Response received
  1 - No response, transmit failure or invalid request
  2 - Connection error`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Uint8Var(&sendCommand, "cmd", 0x01, "Command code")
	sendCmd.Flags().StringVar(&sendHex, "hex", "", "Payload as hex bytes (e.g. \"01 02 ff\")")
	sendCmd.Flags().StringVar(&sendText, "text", "", "Payload as text")
	sendCmd.MarkFlagsMutuallyExclusive("hex", "text")
}

// parseHexPayload accepts hex with optional whitespace, colons or 0x prefixes
func parseHexPayload(s string) ([]byte, error) {
	r := strings.NewReplacer(" ", "", ":", "", "\t", "", "0x", "", "0X", "")
	clean := r.Replace(s)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %v", err)
	}
	return data, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	payload := []byte(sendText)
	if sendHex != "" {
		var err error
		if payload, err = parseHexPayload(sendHex); err != nil {
			return err
		}
	}

	s, err := startSession(context.Background(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.close()

	fmt.Printf("Sextant - Send\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Request: %s (0x%02X), %d bytes\n\n", s.catalog.Name(sendCommand), sendCommand, len(payload))

	call, err := s.call(context.Background(), sendCommand, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "SEND FAILED: %v (code %d)\n", err, duplex.Code(err))
		os.Exit(1)
	}

	if call.Err != nil {
		if errors.Is(call.Err, duplex.ErrTimeout) {
			fmt.Fprintf(os.Stderr, "TIMEOUT: no response after %d attempts\n", call.Attempts)
		} else {
			fmt.Fprintf(os.Stderr, "FAILED: %v (code %d)\n", call.Err, duplex.Code(call.Err))
		}
		os.Exit(1)
	}

	fmt.Printf("Response tag=0x%02X attempts=%d rtt=%v\n", call.Tag, call.Attempts, call.RTT())
	fmt.Printf("  %s\n", s.catalog.FormatReply(call.Command, call.Reply))
	return nil
}
