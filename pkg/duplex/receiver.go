// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"errors"
	"fmt"
)

// ErrNoDispatcher rejects every request on an engine built without a dispatcher
var ErrNoDispatcher = errors.New("duplex: no dispatcher")

// handleRequest deduplicates and answers an inbound request.
//
// Only the most recent accepted request is remembered. A request with a new
// tag is dispatched; the same tag and checksum replays the cached response;
// the same tag with a different checksum is dropped.
func (e *Engine) handleRequest(f Frame) error {
	if !e.seen || f.Tag != e.lastTag {
		return e.accept(f)
	}

	if f.CRC == e.lastCRC {
		e.stats.Replayed++
		e.emit(Event{Kind: EventReplayed, Command: f.Command, Tag: f.Tag, Len: len(e.resp) - MinFrameSize})
		e.log.Debug().Uint8("cmd", f.Command).Uint8("tag", f.Tag).Msg("duplicate request, replaying response")
		if err := e.transmit(e.resp); err != nil {
			e.emit(Event{Kind: EventIOError, Command: f.Command, Tag: f.Tag, Err: err})
			return err
		}
		return nil
	}

	e.stats.TagCollisions++
	e.emit(Event{Kind: EventTagCollision, Command: f.Command, Tag: f.Tag, Len: len(f.Payload)})
	e.log.Warn().
		Uint8("cmd", f.Command).
		Uint8("tag", f.Tag).
		Str("crc", fmt.Sprintf("%08X", f.CRC)).
		Str("cached_crc", fmt.Sprintf("%08X", e.lastCRC)).
		Msg("request reuses cached tag with different content, dropped")
	return nil
}

// accept dispatches a new request, caches its response and transmits it.
// The fingerprint and cache change only when the dispatcher accepts.
func (e *Engine) accept(f Frame) error {
	n, err := e.dispatch(f)
	if err != nil {
		e.stats.Rejected++
		e.emit(Event{Kind: EventRejected, Command: f.Command, Tag: f.Tag, Len: len(f.Payload), Err: err})
		e.log.Debug().Err(err).Uint8("cmd", f.Command).Uint8("tag", f.Tag).Msg("request rejected")
		return nil
	}

	e.seen = true
	e.lastTag = f.Tag
	e.lastCRC = f.CRC
	e.resp = AppendFrame(e.respBuf, f.Command, f.Flags|FlagResponse, f.Tag, e.scratch[:n])

	e.stats.Dispatched++
	e.emit(Event{Kind: EventDispatched, Command: f.Command, Tag: f.Tag, Len: n})
	e.log.Debug().Uint8("cmd", f.Command).Uint8("tag", f.Tag).Int("reply_len", n).Msg("request dispatched")

	if err := e.transmit(e.resp); err != nil {
		e.emit(Event{Kind: EventIOError, Command: f.Command, Tag: f.Tag, Err: err})
		e.log.Warn().Err(err).Uint8("cmd", f.Command).Uint8("tag", f.Tag).Msg("response transmit failed")
		return err
	}
	return nil
}

func (e *Engine) dispatch(f Frame) (int, error) {
	if e.disp == nil {
		return 0, ErrNoDispatcher
	}
	n, err := e.disp.Dispatch(f.Command, f.Payload, e.scratch)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > len(e.scratch) {
		return 0, fmt.Errorf("%w: dispatcher returned %d bytes (max %d)", ErrParams, n, len(e.scratch))
	}
	return n, nil
}
