// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"errors"
	"fmt"
)

// Stream decoding errors
var (
	ErrStreamOverflow = errors.New("duplex: stream frame exceeds maximum size")
	ErrStreamEmpty    = errors.New("duplex: empty stream frame")
	ErrStreamEnd      = errors.New("duplex: unexpected END byte")
	ErrStreamEscape   = errors.New("duplex: invalid escape sequence")
)

// AppendStream appends frame to dst wrapped for a byte-stream link:
// START, frame bytes with START/END/ESC escaped as ESC (b ^ EscXor), END.
func AppendStream(dst, frame []byte) []byte {
	dst = append(dst, StartByte)
	for _, b := range frame {
		if b == StartByte || b == EndByte || b == EscByte {
			dst = append(dst, EscByte, b^EscXor)
		} else {
			dst = append(dst, b)
		}
	}
	return append(dst, EndByte)
}

// EncodeStream wraps a frame for a byte-stream link
func EncodeStream(frame []byte) []byte {
	// Worst case every byte is escaped
	return AppendStream(make([]byte, 0, len(frame)*2+2), frame)
}

// StreamDecoder recovers frames from a byte stream produced by AppendStream.
// It only delimits frames; length and checksum are checked by Validate.
type StreamDecoder struct {
	buf        []byte
	max        int
	inFrame    bool
	escapeNext bool
	skipped    int
}

// NewStreamDecoder creates a decoder accepting frames of up to maxFrame bytes
// after unstuffing.
func NewStreamDecoder(maxFrame int) *StreamDecoder {
	if maxFrame <= 0 {
		maxFrame = MinFrameSize + DefaultMaxPayload
	}
	return &StreamDecoder{
		buf: make([]byte, 0, maxFrame),
		max: maxFrame,
	}
}

// Reset drops any partial frame
func (d *StreamDecoder) Reset() {
	d.buf = d.buf[:0]
	d.inFrame = false
	d.escapeNext = false
}

// Skipped returns the number of bytes discarded outside frames
func (d *StreamDecoder) Skipped() int {
	return d.skipped
}

// DecodeByte processes a single byte.
// Returns a completed frame, or nil if the frame is incomplete. The frame
// is only valid until the next call.
func (d *StreamDecoder) DecodeByte(b byte) ([]byte, error) {
	switch {
	case b == StartByte:
		// A START inside a frame abandons the partial frame
		d.Reset()
		d.inFrame = true
		return nil, nil

	case !d.inFrame:
		if b == EndByte {
			return nil, ErrStreamEnd
		}
		d.skipped++
		return nil, nil

	case b == EndByte:
		if d.escapeNext {
			d.Reset()
			return nil, ErrStreamEscape
		}
		frame := d.buf
		d.inFrame = false
		d.buf = d.buf[:0]
		if len(frame) == 0 {
			return nil, ErrStreamEmpty
		}
		return frame, nil

	case b == EscByte && !d.escapeNext:
		d.escapeNext = true
		return nil, nil
	}

	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}
	if len(d.buf) >= d.max {
		d.Reset()
		return nil, fmt.Errorf("%w: more than %d bytes", ErrStreamOverflow, d.max)
	}
	d.buf = append(d.buf, b)
	return nil, nil
}

// Decode feeds p through the decoder, calling fn for each completed frame
// and onErr for each framing error. Either callback may be nil.
func (d *StreamDecoder) Decode(p []byte, fn func(frame []byte), onErr func(error)) {
	for _, b := range p {
		frame, err := d.DecodeByte(b)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			continue
		}
		if frame != nil && fn != nil {
			fn(frame)
		}
	}
}
