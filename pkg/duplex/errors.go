// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import "errors"

var (
	ErrParams  = errors.New("duplex: invalid parameters")
	ErrCRC     = errors.New("duplex: CRC mismatch")
	ErrBusy    = errors.New("duplex: send already outstanding")
	ErrIO      = errors.New("duplex: transport send failed")
	ErrTimeout = errors.New("duplex: no response after retries")
	ErrReset   = errors.New("duplex: engine reset")
	ErrClosed  = errors.New("duplex: link closed")
)

// Result codes used on embedded peers
const (
	CodeOK      = 0
	CodeBusy    = -1
	CodeParams  = -2
	CodeTimeout = -3
	CodeIO      = -4
	CodeCRC     = -5
)

// Code maps an error returned by the engine to its numeric result code.
// Errors outside the protocol set map to CodeIO.
func Code(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrBusy):
		return CodeBusy
	case errors.Is(err, ErrParams):
		return CodeParams
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrCRC):
		return CodeCRC
	default:
		return CodeIO
	}
}
