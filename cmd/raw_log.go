// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display frames as they arrive, without running
the protocol engine. Nothing is ever transmitted.

Each frame is shown with timestamp, direction, command, tag, flags, length,
checksum and payload. Framing and checksum errors are reported inline.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Sextant - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return logFrames(conn, duplex.NewStreamDecoder(duplex.MinFrameSize+cfg.MaxPayload), cmd.OutOrStdout())
}

// logFrames prints every frame read from r until the stream ends
func logFrames(r io.Reader, decoder *duplex.StreamDecoder, out io.Writer) error {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		decoder.Decode(buf[:n], func(raw []byte) {
			f, err := duplex.Validate(raw)
			if err != nil {
				fmt.Fprintf(out, "[ERROR] %v: %s\n", err, duplex.FormatHex(raw, 32))
				return
			}
			fmt.Fprint(out, duplex.FormatFrame(f, time.Now()))
		}, func(err error) {
			fmt.Fprintf(out, "[ERROR] %v\n", err)
		})

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				logger.Info().Msg("connection closed")
				return nil
			}
			return fmt.Errorf("read error: %v", err)
		}
	}
}
