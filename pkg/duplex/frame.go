// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"encoding/binary"
	"fmt"
)

// Frame is a validated protocol frame. Payload aliases the bytes it was
// parsed from.
type Frame struct {
	Command uint8
	Flags   uint8
	Tag     uint8
	Payload []byte
	CRC     uint32 // trailer value
}

// IsResponse reports whether the response flag is set
func (f Frame) IsResponse() bool {
	return f.Flags&FlagResponse != 0
}

// Len returns the encoded frame length
func (f Frame) Len() int {
	return MinFrameSize + len(f.Payload)
}

// Validate checks length and checksum of a raw frame and parses its fields.
func Validate(b []byte) (Frame, error) {
	if len(b) < MinFrameSize {
		return Frame{}, fmt.Errorf("%w: frame length %d below minimum %d", ErrParams, len(b), MinFrameSize)
	}
	if crc := Checksum(b); crc != 0 {
		return Frame{}, fmt.Errorf("%w: residue 0x%08X over %d bytes", ErrCRC, crc, len(b))
	}

	n := len(b)
	return Frame{
		Command: b[0],
		Flags:   b[1],
		Tag:     b[2],
		Payload: b[HeaderSize : n-TrailerSize],
		CRC:     binary.LittleEndian.Uint32(b[n-TrailerSize:]),
	}, nil
}

// AppendFrame appends an encoded frame to dst[:0] and returns the result.
// When dst has capacity for MinFrameSize+len(payload) no allocation happens.
func AppendFrame(dst []byte, cmd, flags, tag uint8, payload []byte) []byte {
	out := append(dst[:0], cmd, flags, tag)
	out = append(out, payload...)
	return binary.LittleEndian.AppendUint32(out, Checksum(out))
}

// Compose builds a new frame
func Compose(cmd, flags, tag uint8, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, MinFrameSize+len(payload)), cmd, flags, tag, payload)
}
