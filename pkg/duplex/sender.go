// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// Pending describes the outstanding send
type Pending struct {
	Command uint8
	Tag     uint8
	Attempt int
	Frame   []byte // copy of the transmitted request
}

// Send transmits a request and returns its completion handle.
//
// It fails with ErrBusy while another send is outstanding and with ErrParams
// when the payload exceeds the configured maximum; neither changes any
// state. If the first transmission fails Send returns ErrIO and no retry is
// scheduled.
func (e *Engine) Send(cmd uint8, payload []byte) (*Call, error) {
	if e.out != nil {
		return nil, ErrBusy
	}
	if len(payload) > e.cfg.MaxPayload {
		return nil, fmt.Errorf("%w: payload %d bytes exceeds maximum %d", ErrParams, len(payload), e.cfg.MaxPayload)
	}

	e.sendTag++
	tag := e.sendTag
	frame := AppendFrame(e.sendBuf, cmd, 0, tag, payload)

	if err := e.transmit(frame); err != nil {
		e.emit(Event{Kind: EventIOError, Command: cmd, Tag: tag, Attempt: 1, Err: err})
		e.log.Warn().Err(err).Uint8("cmd", cmd).Uint8("tag", tag).Msg("request transmit failed")
		return nil, err
	}

	call := newCall(cmd, tag)
	e.out = &outstanding{
		cmd:     cmd,
		tag:     tag,
		frame:   frame,
		attempt: 1,
		call:    call,
	}
	e.arm()

	e.stats.Sends++
	e.emit(Event{Kind: EventSent, Command: cmd, Tag: tag, Attempt: 1, Len: len(payload)})
	e.log.Debug().Uint8("cmd", cmd).Uint8("tag", tag).Int("len", len(payload)).Msg("request sent")
	return call, nil
}

// Busy reports whether a send is outstanding
func (e *Engine) Busy() bool {
	return e.out != nil
}

// Pending returns the outstanding send, if any
func (e *Engine) Pending() (Pending, bool) {
	if e.out == nil {
		return Pending{}, false
	}
	return Pending{
		Command: e.out.cmd,
		Tag:     e.out.tag,
		Attempt: e.out.attempt,
		Frame:   bytes.Clone(e.out.frame),
	}, true
}

// handleResponse completes the outstanding send when tag and command match
func (e *Engine) handleResponse(f Frame) {
	if e.out == nil || f.Tag != e.out.tag || f.Command != e.out.cmd {
		e.stats.StrayResponses++
		e.emit(Event{Kind: EventStrayResponse, Command: f.Command, Tag: f.Tag, Len: len(f.Payload)})
		e.log.Debug().Uint8("cmd", f.Command).Uint8("tag", f.Tag).Msg("unmatched response ignored")
		return
	}

	e.disarm()
	e.complete(bytes.Clone(f.Payload), nil)
}

// arm schedules the retry timer, replacing any previous one
func (e *Engine) arm() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timerGen++
	gen := e.timerGen
	e.timer = e.sched.Schedule(e.cfg.Timeout, func() {
		e.expire(gen)
	})
}

// disarm stops the timer and invalidates a fire already in flight
func (e *Engine) disarm() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
}

// expire runs when the retry timer fires
func (e *Engine) expire(gen uint64) {
	if e.out == nil || gen != e.timerGen {
		return
	}
	e.timer = nil
	out := e.out

	if out.attempt >= e.cfg.MaxAttempts {
		e.log.Debug().Uint8("cmd", out.cmd).Uint8("tag", out.tag).Int("attempts", out.attempt).Msg("send timed out")
		e.complete(nil, ErrTimeout)
		return
	}

	if err := e.transmit(out.frame); err != nil {
		e.emit(Event{Kind: EventIOError, Command: out.cmd, Tag: out.tag, Attempt: out.attempt + 1, Err: err})
		e.log.Warn().Err(err).Uint8("cmd", out.cmd).Uint8("tag", out.tag).Msg("retransmit failed")
		e.complete(nil, err)
		return
	}

	out.attempt++
	e.stats.Retransmits++
	e.emit(Event{Kind: EventRetransmit, Command: out.cmd, Tag: out.tag, Attempt: out.attempt, Len: len(out.frame) - MinFrameSize})
	e.log.Debug().Uint8("cmd", out.cmd).Uint8("tag", out.tag).Int("attempt", out.attempt).Msg("request retransmitted")
	e.arm()
}

// complete finishes the outstanding send and delivers its call
func (e *Engine) complete(reply []byte, err error) {
	out := e.out
	e.out = nil

	switch {
	case err == nil:
		e.stats.Completed++
	case errors.Is(err, ErrTimeout):
		e.stats.Timeouts++
	}
	e.stats.touch()

	call := out.call
	call.Reply = reply
	call.Err = err
	call.Attempts = out.attempt
	call.Finished = time.Now()

	e.emit(Event{Kind: EventCompleted, Command: out.cmd, Tag: out.tag, Attempt: out.attempt, Len: len(reply), Err: err})
	call.Done <- call
}
