// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/sextant/pkg/catalog"
	"github.com/Thermoquad/sextant/pkg/duplex"
)

// ============================================================
// Payload Parsing
// ============================================================

func TestParseHexPayload(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"", []byte{}},
		{"01", []byte{0x01}},
		{"01 02 ff", []byte{0x01, 0x02, 0xFF}},
		{"de:ad:be:ef", []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{"0x7e 0X7F", []byte{0x7E, 0x7F}},
	}
	for _, tt := range tests {
		got, err := parseHexPayload(tt.in)
		require.Nil(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseHexPayload("abc")
	assert.NotNil(t, err)
	_, err = parseHexPayload("zz")
	assert.NotNil(t, err)
}

func TestParseRequestLine(t *testing.T) {
	assert := assert.New(t)

	cmd, payload, err := parseRequestLine("02 de ad")
	require.Nil(t, err)
	assert.Equal(uint8(0x02), cmd)
	assert.Equal([]byte{0xDE, 0xAD}, payload)

	cmd, payload, err = parseRequestLine("  0x1f ")
	require.Nil(t, err)
	assert.Equal(uint8(0x1F), cmd)
	assert.Nil(payload)

	_, _, err = parseRequestLine("")
	assert.NotNil(err)
	_, _, err = parseRequestLine("100")
	assert.NotNil(err)
	_, _, err = parseRequestLine("02 x")
	assert.NotNil(err)
}

// ============================================================
// Frame Reading
// ============================================================

func TestLogFrames(t *testing.T) {
	assert := assert.New(t)

	bad := duplex.Compose(0x02, 0x00, 0x05, []byte("xy"))
	bad[4] ^= 0x10
	var stream []byte
	stream = duplex.AppendStream(stream, duplex.Compose(0x01, 0x00, 0xAB, nil))
	stream = duplex.AppendStream(stream, bad)
	stream = append(stream, duplex.EndByte)
	stream = duplex.AppendStream(stream, duplex.Compose(0x01, duplex.FlagResponse, 0xAB, []byte("123")))

	var out bytes.Buffer
	err := logFrames(bytes.NewReader(stream), duplex.NewStreamDecoder(0), &out)
	require.Nil(t, err)

	text := out.String()
	assert.Contains(text, "REQ  cmd=0x01 tag=0xAB")
	assert.Contains(text, "RESP cmd=0x01 tag=0xAB flags=0x80 len=3")
	assert.Contains(text, "CRC mismatch")
	assert.Contains(text, "unexpected END")
}

func TestWaitForFrame(t *testing.T) {
	assert := assert.New(t)

	bad := duplex.Compose(0x02, 0x00, 0x05, nil)
	bad[0] ^= 0x01
	stream := []byte{0x00, 0x11}
	stream = duplex.AppendStream(stream, bad)
	stream = duplex.AppendStream(stream, duplex.Compose(0x03, 0x00, 0x09, []byte{0x7E}))

	res, err := waitForFrame(bytes.NewReader(stream), 64)
	require.Nil(t, err)
	assert.Equal(uint8(0x03), res.frame.Command)
	assert.Equal(uint8(0x09), res.frame.Tag)
	assert.Equal([]byte{0x7E}, res.frame.Payload)
	assert.Equal(2, res.skipped)
	assert.Equal(1, res.damaged)

	_, err = waitForFrame(bytes.NewReader([]byte{0x00}), 64)
	assert.NotNil(err)
}

// ============================================================
// Session
// ============================================================

func startPeer(t *testing.T, conn net.Conn, name string) *duplex.Link {
	t.Helper()
	cat := catalog.New(name, 0)
	peer, err := duplex.NewLink(conn, cat, duplex.Config{})
	require.Nil(t, err)
	cat.SetStatsSource(peer.Engine().Stats)

	ctx, cancel := context.WithCancel(context.Background())
	go peer.Run(ctx)
	t.Cleanup(func() {
		cancel()
		conn.Close()
	})
	return peer
}

func TestSessionCallsPeerCatalog(t *testing.T) {
	assert := assert.New(t)
	left, right := net.Pipe()
	startPeer(t, right, "peer-node")

	s, err := runSession(context.Background(), left, "pipe", nil)
	require.Nil(t, err)
	defer s.close()

	call, err := s.call(context.Background(), catalog.CmdInfo, nil)
	require.Nil(t, err)
	require.Nil(t, call.Err)
	assert.Contains(s.catalog.FormatReply(call.Command, call.Reply), `name="peer-node"`)

	call, err = s.call(context.Background(), catalog.CmdEcho, []byte{0x7D, 0x7E, 0x7F})
	require.Nil(t, err)
	require.Nil(t, call.Err)
	assert.Equal([]byte{0x7D, 0x7E, 0x7F}, call.Reply)

	stats, err := s.link.Stats(context.Background())
	require.Nil(t, err)
	assert.Equal(uint64(2), stats.Completed)
}

func TestSessionAnswersPeer(t *testing.T) {
	assert := assert.New(t)
	left, right := net.Pipe()
	peer := startPeer(t, right, "peer-node")

	var observed atomic.Int64
	s, err := runSession(context.Background(), left, "pipe", func(ev duplex.Event) {
		observed.Add(1)
	})
	require.Nil(t, err)
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := peer.Call(ctx, catalog.CmdStats, nil)
	require.Nil(t, err)

	m, err := catalog.ParseMap(reply)
	require.Nil(t, err)
	frames, ok := catalog.GetMapUint(m, catalog.StatFramesReceived)
	assert.True(ok)
	assert.Equal(uint64(1), frames)

	stats, err := s.link.Stats(ctx)
	require.Nil(t, err)
	assert.Equal(uint64(1), stats.Dispatched)
	assert.True(observed.Load() > 0)
}

func TestSessionTimeout(t *testing.T) {
	saved := cfg
	defer func() { cfg = saved }()
	cfg.TimeoutMs = 10
	cfg.MaxAttempts = 2

	left, right := net.Pipe()
	go func() {
		buf := make([]byte, 256)
		for {
			if _, err := right.Read(buf); err != nil {
				return
			}
		}
	}()
	defer right.Close()

	s, err := runSession(context.Background(), left, "pipe", nil)
	require.Nil(t, err)
	defer s.close()

	call, err := s.call(context.Background(), catalog.CmdPing, nil)
	require.Nil(t, err)
	assert.ErrorIs(t, call.Err, duplex.ErrTimeout)
	assert.Equal(t, 2, call.Attempts)
}
