// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package duplex implements a half-duplex, reliable-delivery protocol layer
// for unreliable framed links such as UART or radio.
//
// A single Engine answers inbound requests exactly once (retransmitted
// requests are answered from a cached response) and carries at most one
// outbound request at a time, retransmitting it on timeout a bounded number
// of times.
//
// Frame layout:
//
//	byte 0         command
//	byte 1         flags (0x80 = response)
//	byte 2         tag
//	bytes 3..N-5   payload
//	bytes N-4..N-1 CRC32, little-endian, Checksum(frame) == 0
package duplex

import "time"

// Frame layout
const (
	HeaderSize   = 3
	TrailerSize  = 4
	MinFrameSize = HeaderSize + TrailerSize
)

// FlagResponse marks a frame as a response. Other flag bits are opaque.
const FlagResponse = 0x80

// Engine defaults
const (
	DefaultMaxPayload  = 4096
	DefaultTimeout     = 400 * time.Millisecond
	DefaultMaxAttempts = 2
)

// Stream framing bytes (see StreamDecoder)
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)
