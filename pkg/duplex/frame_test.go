// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_KnownValue(t *testing.T) {
	// CRC-32/JAMCRC check value
	if crc := Checksum([]byte("123456789")); crc != 0x340BC6D9 {
		t.Errorf("Checksum(\"123456789\") = 0x%08X, want 0x340BC6D9", crc)
	}
}

func TestChecksum_ZeroResidue(t *testing.T) {
	buf := []byte{0x01, 0x00, 0xAB}
	buf = binary.LittleEndian.AppendUint32(buf, Checksum(buf))

	if len(buf) != MinFrameSize {
		t.Fatalf("frame length = %d, want %d", len(buf), MinFrameSize)
	}
	if crc := Checksum(buf); crc != 0 {
		t.Errorf("residue = 0x%08X, want 0", crc)
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	data := []byte{0x10, 0x30, 0x01, 0x02, 0x03, 0x04}
	if Checksum(data) != Checksum(data) {
		t.Error("Checksum should be deterministic")
	}
}

// ============================================================
// Compose / Validate Tests
// ============================================================

func TestCompose_ZeroResidue(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"short", []byte("123")},
		{"framing bytes", []byte{StartByte, EndByte, EscByte, 0x00, 0xFF}},
		{"max", bytes.Repeat([]byte{0xA5}, DefaultMaxPayload)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Compose(0x42, 0x01, 0x99, tt.payload)
			if len(frame) != MinFrameSize+len(tt.payload) {
				t.Errorf("len = %d, want %d", len(frame), MinFrameSize+len(tt.payload))
			}
			if crc := Checksum(frame); crc != 0 {
				t.Errorf("residue = 0x%08X, want 0", crc)
			}
		})
	}
}

func TestValidate_Fields(t *testing.T) {
	frame := Compose(0x05, 0x81, 0x7A, []byte{0x0A, 0x0B, 0x0C})

	f, err := Validate(frame)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if f.Command != 0x05 || f.Flags != 0x81 || f.Tag != 0x7A {
		t.Errorf("header = %02X %02X %02X, want 05 81 7A", f.Command, f.Flags, f.Tag)
	}
	if !bytes.Equal(f.Payload, []byte{0x0A, 0x0B, 0x0C}) {
		t.Errorf("payload = %X", f.Payload)
	}
	if !f.IsResponse() {
		t.Error("IsResponse() = false, want true")
	}
	if want := binary.LittleEndian.Uint32(frame[len(frame)-4:]); f.CRC != want {
		t.Errorf("CRC = 0x%08X, want 0x%08X", f.CRC, want)
	}
	if f.Len() != len(frame) {
		t.Errorf("Len() = %d, want %d", f.Len(), len(frame))
	}
}

func TestValidate_TooShort(t *testing.T) {
	for n := 0; n < MinFrameSize; n++ {
		_, err := Validate(make([]byte, n))
		if !errors.Is(err, ErrParams) {
			t.Errorf("len %d: err = %v, want ErrParams", n, err)
		}
	}
}

func TestValidate_CorruptedByte(t *testing.T) {
	frame := Compose(0x01, 0x00, 0xAB, []byte("payload"))

	for i := range frame {
		corrupt := bytes.Clone(frame)
		corrupt[i] ^= 0x01
		if _, err := Validate(corrupt); !errors.Is(err, ErrCRC) {
			t.Errorf("flip at byte %d: err = %v, want ErrCRC", i, err)
		}
	}
}

func TestAppendFrame_NoAllocation(t *testing.T) {
	payload := []byte("hello")
	dst := make([]byte, 0, MinFrameSize+len(payload))

	allocs := testing.AllocsPerRun(100, func() {
		dst = AppendFrame(dst, 0x01, 0x00, 0x02, payload)
	})
	if allocs != 0 {
		t.Errorf("AppendFrame allocated %.0f times, want 0", allocs)
	}
}

// ============================================================
// Result Code Tests
// ============================================================

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, CodeOK},
		{ErrBusy, CodeBusy},
		{ErrParams, CodeParams},
		{ErrTimeout, CodeTimeout},
		{ErrIO, CodeIO},
		{ErrCRC, CodeCRC},
		{errors.Join(ErrIO, errLinkDown), CodeIO},
	}

	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}

	_, err := Validate([]byte{1, 2})
	if Code(err) != CodeParams {
		t.Errorf("Code(wrapped params) = %d, want %d", Code(err), CodeParams)
	}
}
