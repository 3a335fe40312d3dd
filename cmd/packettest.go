// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid frame",
	Long: `Wait for a valid frame on the connection until timeout.

This command connects and waits for any frame that passes the length and
checksum checks. Bytes outside frames and damaged frames are skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

// frameResult is the outcome of waitForFrame
type frameResult struct {
	frame   duplex.Frame
	skipped int // bytes outside frames
	damaged int // frames failing validation
}

// waitForFrame reads r until one valid frame arrives or reading fails
func waitForFrame(r io.Reader, maxFrame int) (frameResult, error) {
	decoder := duplex.NewStreamDecoder(maxFrame)
	buf := make([]byte, 128)
	res := frameResult{}

	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			raw, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil || raw == nil {
				continue
			}
			f, err := duplex.Validate(raw)
			if err != nil {
				res.damaged++
				continue
			}
			f.Payload = append([]byte(nil), f.Payload...)
			res.frame = f
			res.skipped = decoder.Skipped()
			return res, nil
		}
		if err != nil {
			return res, err
		}
	}
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Sextant - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	resultChan := make(chan frameResult, 1)
	errChan := make(chan error, 1)
	go func() {
		res, err := waitForFrame(conn, duplex.MinFrameSize+cfg.MaxPayload)
		if err != nil {
			errChan <- err
			return
		}
		resultChan <- res
	}()

	select {
	case res := <-resultChan:
		if res.skipped > 0 || res.damaged > 0 {
			fmt.Printf("(skipped %d bytes and %d damaged frames before sync)\n", res.skipped, res.damaged)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Print(duplex.FormatFrame(res.frame, time.Now()))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
