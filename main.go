// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Sextant - half-duplex reliable request/response link tool
//
// A CLI tool for running, probing and monitoring the duplex protocol over
// serial, TCP and WebSocket byte streams.

package main

import (
	"os"

	"github.com/Thermoquad/sextant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
