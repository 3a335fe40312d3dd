// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// ============================================================
// Test Doubles
// ============================================================

var errLinkDown = errors.New("link down")

// recordingTransport captures every frame handed to it, including failed ones
type recordingTransport struct {
	frames [][]byte
	err    error
}

func (t *recordingTransport) SendFrame(frame []byte) error {
	t.frames = append(t.frames, bytes.Clone(frame))
	return t.err
}

func (t *recordingTransport) last() []byte {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// manualTimer fires only when the test says so
type manualTimer struct {
	d       time.Duration
	fire    func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type manualScheduler struct {
	timers []*manualTimer
}

func (s *manualScheduler) Schedule(d time.Duration, fire func()) Timer {
	t := &manualTimer{d: d, fire: fire}
	s.timers = append(s.timers, t)
	return t
}

// armed returns the running timer, if any
func (s *manualScheduler) armed() *manualTimer {
	var running *manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			running = t
		}
	}
	return running
}

// expire fires the running timer and reports whether one was armed
func (s *manualScheduler) expire() bool {
	t := s.armed()
	if t == nil {
		return false
	}
	t.fired = true
	t.fire()
	return true
}

// tableDispatcher answers from a fixed reply table and counts calls
type tableDispatcher struct {
	replies map[uint8][]byte
	calls   int
	last    []byte
	reject  error
}

func (d *tableDispatcher) Dispatch(cmd uint8, payload []byte, out []byte) (int, error) {
	d.calls++
	d.last = bytes.Clone(payload)
	if d.reject != nil {
		return 0, d.reject
	}
	reply, ok := d.replies[cmd]
	if !ok {
		return 0, nil
	}
	return copy(out, reply), nil
}

type fixture struct {
	engine *Engine
	tr     *recordingTransport
	sched  *manualScheduler
	disp   *tableDispatcher
	events []Event
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	fx := &fixture{
		tr:    &recordingTransport{},
		sched: &manualScheduler{},
		disp:  &tableDispatcher{replies: map[uint8][]byte{0x01: []byte("123")}},
	}
	cfg.Observer = func(ev Event) {
		fx.events = append(fx.events, ev)
	}
	engine, err := NewEngine(cfg, fx.tr, fx.disp, fx.sched)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	fx.engine = engine
	return fx
}

func (fx *fixture) countEvents(kind EventKind) int {
	n := 0
	for _, ev := range fx.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// requestFrame builds a request as a peer would
func requestFrame(cmd, tag uint8, payload []byte) []byte {
	return Compose(cmd, 0x00, tag, payload)
}

// responseTo builds the peer's response to a frame we transmitted
func responseTo(request []byte, payload []byte) []byte {
	return Compose(request[0], request[1]|FlagResponse, request[2], payload)
}

// received reports whether the call has been delivered, without blocking
func received(call *Call) bool {
	select {
	case <-call.Done:
		return true
	default:
		return false
	}
}
