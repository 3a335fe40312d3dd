// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package catalog provides the command set a sextant node answers with.
// A Catalog is a duplex.Dispatcher: each command maps to a handler producing
// the response payload, and unknown commands are rejected so the peer sees
// no response at all.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

// Built-in commands
const (
	CmdPing  uint8 = 0x01
	CmdEcho  uint8 = 0x02
	CmdInfo  uint8 = 0x03
	CmdStats uint8 = 0x04
)

// Version is reported by INFO
const Version = "0.1.0"

var (
	ErrUnknownCommand = errors.New("catalog: unknown command")
	ErrReplyTooLarge  = errors.New("catalog: reply exceeds output buffer")
)

// Handler produces the reply for one request. The payload is only valid for
// the duration of the call.
type Handler func(payload []byte) ([]byte, error)

type entry struct {
	name    string
	handler Handler
}

// Catalog maps command codes to handlers
type Catalog struct {
	mu       sync.RWMutex
	entries  map[uint8]entry
	name     string
	started  time.Time
	maxReply int
	stats    func() duplex.Statistics
}

// New creates a catalog with the built-in commands registered.
// maxPayload is reported by INFO; zero selects duplex.DefaultMaxPayload.
func New(name string, maxPayload int) *Catalog {
	if maxPayload <= 0 {
		maxPayload = duplex.DefaultMaxPayload
	}
	c := &Catalog{
		entries:  make(map[uint8]entry),
		name:     name,
		started:  time.Now(),
		maxReply: maxPayload,
	}

	c.Register(CmdPing, "PING", c.ping)
	c.Register(CmdEcho, "ECHO", echo)
	c.Register(CmdInfo, "INFO", c.info)
	c.Register(CmdStats, "STATS", c.statsReply)
	return c
}

// Register adds or replaces the handler for cmd
func (c *Catalog) Register(cmd uint8, name string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cmd] = entry{name: name, handler: h}
}

// SetStatsSource sets the function STATS reads counters from. It is called
// from the dispatch context, so a Link's Engine().Stats is safe to use.
func (c *Catalog) SetStatsSource(fn func() duplex.Statistics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = fn
}

// Commands returns the registered command codes in ascending order
func (c *Catalog) Commands() []uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmds := make([]uint8, 0, len(c.entries))
	for cmd := range c.entries {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return cmds
}

// Name returns the command name, or a hex placeholder when unregistered
func (c *Catalog) Name(cmd uint8) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[cmd]; ok {
		return e.name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", cmd)
}

// Dispatch implements duplex.Dispatcher
func (c *Catalog) Dispatch(cmd uint8, payload []byte, out []byte) (int, error) {
	c.mu.RLock()
	e, ok := c.entries[cmd]
	c.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, cmd)
	}

	reply, err := e.handler(payload)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", e.name, err)
	}
	if len(reply) > len(out) {
		return 0, fmt.Errorf("%w: %s reply is %d bytes, buffer %d", ErrReplyTooLarge, e.name, len(reply), len(out))
	}
	return copy(out, reply), nil
}

func (c *Catalog) ping(payload []byte) ([]byte, error) {
	return EncodeMap(map[int]interface{}{
		0: uint64(time.Since(c.started).Milliseconds()),
	})
}

func echo(payload []byte) ([]byte, error) {
	return payload, nil
}

func (c *Catalog) info(payload []byte) ([]byte, error) {
	return EncodeMap(map[int]interface{}{
		0: c.name,
		1: Version,
		2: uint64(c.maxReply),
	})
}

func (c *Catalog) statsReply(payload []byte) ([]byte, error) {
	c.mu.RLock()
	source := c.stats
	c.mu.RUnlock()
	if source == nil {
		return nil, errors.New("no statistics source")
	}
	return EncodeStats(source())
}
