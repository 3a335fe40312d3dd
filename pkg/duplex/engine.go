// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Transport sends one complete frame. A non-nil error is terminal for that
// transmission and is never retried within the same call.
type Transport interface {
	SendFrame(frame []byte) error
}

// TransportFunc adapts a function to Transport
type TransportFunc func(frame []byte) error

// SendFrame calls f(frame)
func (f TransportFunc) SendFrame(frame []byte) error {
	return f(frame)
}

// Dispatcher produces the response payload for a new inbound request.
// It writes at most len(out) bytes into out and returns the count. A non-nil
// error rejects the request: nothing is sent and nothing is cached.
// payload and out are only valid for the duration of the call.
type Dispatcher interface {
	Dispatch(cmd uint8, payload []byte, out []byte) (int, error)
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(cmd uint8, payload []byte, out []byte) (int, error)

// Dispatch calls f(cmd, payload, out)
func (f DispatcherFunc) Dispatch(cmd uint8, payload []byte, out []byte) (int, error) {
	return f(cmd, payload, out)
}

// Config holds engine parameters. Zero values select the defaults.
type Config struct {
	MaxPayload  int
	Timeout     time.Duration
	MaxAttempts int

	Logger   *zerolog.Logger // nil disables logging
	Observer func(Event)     // called synchronously in the engine context
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		MaxPayload:  DefaultMaxPayload,
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
	}
}

func (c Config) withDefaults() (Config, error) {
	if c.MaxPayload < 0 || c.Timeout < 0 || c.MaxAttempts < 0 {
		return c, fmt.Errorf("%w: negative engine configuration (max_payload=%d timeout=%v attempts=%d)",
			ErrParams, c.MaxPayload, c.Timeout, c.MaxAttempts)
	}
	if c.MaxPayload == 0 {
		c.MaxPayload = DefaultMaxPayload
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c, nil
}

// outstanding is the single in-flight send
type outstanding struct {
	cmd     uint8
	tag     uint8
	frame   []byte // view into Engine.sendBuf
	attempt int
	call    *Call
}

// Engine is the protocol state machine. It is not safe for concurrent use:
// Process, Send, Reset and timer callbacks must be serialized by the caller
// (see Link).
type Engine struct {
	cfg   Config
	tr    Transport
	disp  Dispatcher
	sched Scheduler
	log   zerolog.Logger

	// Receiver
	seen    bool
	lastTag uint8
	lastCRC uint32
	respBuf []byte
	resp    []byte
	scratch []byte

	// Sender
	sendTag  uint8
	sendBuf  []byte
	out      *outstanding
	timer    Timer
	timerGen uint64

	stats Statistics
}

// NewEngine creates an engine in the Idle/fresh state. Frame buffers are
// allocated once here with room for cfg.MaxPayload bytes of payload.
func NewEngine(cfg Config, tr Transport, disp Dispatcher, sched Scheduler) (*Engine, error) {
	if tr == nil || sched == nil {
		return nil, fmt.Errorf("%w: transport and scheduler are required", ErrParams)
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		tr:      tr,
		disp:    disp,
		sched:   sched,
		log:     cfg.Logger.With().Str("component", "duplex").Logger(),
		respBuf: make([]byte, 0, MinFrameSize+cfg.MaxPayload),
		scratch: make([]byte, cfg.MaxPayload),
		sendBuf: make([]byte, 0, MinFrameSize+cfg.MaxPayload),
		stats:   NewStatistics(),
	}
	return e, nil
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Reset returns the engine to Idle with no fingerprint and a zero tag
// counter. An outstanding send completes with ErrReset.
func (e *Engine) Reset() {
	if e.out != nil {
		e.disarm()
		e.complete(nil, ErrReset)
	}
	e.seen = false
	e.lastTag = 0
	e.lastCRC = 0
	e.resp = nil
	e.sendTag = 0
	e.log.Debug().Msg("engine reset")
}

// Process handles one received frame. It returns ErrParams for short frames,
// ErrCRC for checksum failures and ErrIO when the response could not be
// transmitted. Responses that match nothing are ignored without error.
func (e *Engine) Process(frame []byte) error {
	f, err := Validate(frame)
	if err != nil {
		e.drop(err, len(frame))
		return err
	}

	e.stats.FramesReceived++
	e.stats.touch()

	if f.IsResponse() {
		e.handleResponse(f)
		return nil
	}
	return e.handleRequest(f)
}

// drop records a frame that never reached the state machine
func (e *Engine) drop(err error, n int) {
	if errors.Is(err, ErrCRC) {
		e.stats.CRCErrors++
		e.emit(Event{Kind: EventCRCError, Len: n, Err: err})
	} else {
		e.stats.MalformedFrames++
		e.emit(Event{Kind: EventMalformed, Len: n, Err: err})
	}
	e.stats.touch()
	e.log.Debug().Err(err).Int("len", n).Msg("frame dropped")
}

// Stats returns a copy of the engine statistics
func (e *Engine) Stats() Statistics {
	s := e.stats
	s.CalculateRates()
	return s
}

// ResetStats clears the statistics counters
func (e *Engine) ResetStats() {
	e.stats.Reset()
}

// transmit hands a frame to the transport
func (e *Engine) transmit(frame []byte) error {
	if err := e.tr.SendFrame(frame); err != nil {
		e.stats.IOErrors++
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	e.stats.FramesSent++
	return nil
}

func (e *Engine) emit(ev Event) {
	if e.cfg.Observer != nil {
		e.cfg.Observer(ev)
	}
}
