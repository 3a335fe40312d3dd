// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"context"
	"time"
)

// Call is the completion handle of one accepted Send. The engine delivers the
// call on Done exactly once: on a matching response (Err nil), on timeout
// (ErrTimeout), on a failed retransmission (ErrIO) or on Reset (ErrReset).
type Call struct {
	Command uint8
	Tag     uint8

	Reply    []byte // response payload copy, nil on failure
	Err      error
	Attempts int // transmissions made, including the first

	Started  time.Time
	Finished time.Time

	Done chan *Call // capacity 1
}

func newCall(cmd, tag uint8) *Call {
	return &Call{
		Command:  cmd,
		Tag:      tag,
		Attempts: 1,
		Started:  time.Now(),
		Done:     make(chan *Call, 1),
	}
}

// Wait blocks until the call completes or ctx is done.
// It must not be called from the engine's execution context.
func (c *Call) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-c.Done:
		return c.Reply, c.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RTT returns the time from the first transmission to completion
func (c *Call) RTT() time.Duration {
	if c.Finished.IsZero() {
		return 0
	}
	return c.Finished.Sub(c.Started)
}
