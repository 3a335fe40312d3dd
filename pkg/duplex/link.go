// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// readBufferSize is the chunk size used when reading the underlying stream
const readBufferSize = 256

// Link runs an Engine over a byte stream. Frames are carried with the
// stream framing from AppendStream. Every engine entry point (received
// frames, timer fires, application calls) executes on the goroutine running
// Run, so the engine is never entered concurrently.
type Link struct {
	rw     io.ReadWriter
	engine *Engine
	dec    *StreamDecoder
	wbuf   []byte
	log    zerolog.Logger

	events  chan func()
	done    chan struct{}
	started atomic.Bool
}

// NewLink creates a link over rw. Call Run to start processing.
func NewLink(rw io.ReadWriter, disp Dispatcher, cfg Config) (*Link, error) {
	l := &Link{
		rw:     rw,
		events: make(chan func()),
		done:   make(chan struct{}),
	}

	engine, err := NewEngine(cfg, TransportFunc(l.write), disp, SchedulerFunc(l.schedule))
	if err != nil {
		return nil, err
	}
	maxFrame := MinFrameSize + engine.Config().MaxPayload

	l.engine = engine
	l.dec = NewStreamDecoder(maxFrame)
	l.wbuf = make([]byte, 0, 2*maxFrame+2)
	l.log = engine.Config().Logger.With().Str("component", "link").Logger()
	return l, nil
}

// Engine returns the underlying engine. It may only be used from the link's
// execution context: inside Do, a Dispatcher or an Observer.
func (l *Link) Engine() *Engine {
	return l.engine
}

// Run processes the link until ctx is done or reading fails. The reader
// goroutine stays blocked in Read until the caller closes the stream.
func (l *Link) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("duplex: link already running")
	}
	defer close(l.done)

	readErr := make(chan error, 1)
	go l.readLoop(readErr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case fn := <-l.events:
			fn()
		}
	}
}

// Do runs fn on the link's execution context and waits for it to return.
func (l *Link) Do(ctx context.Context, fn func(e *Engine)) error {
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn(l.engine)
	}

	select {
	case l.events <- job:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// The loop runs a job as soon as it receives it
	<-finished
	return nil
}

// Send issues a request and returns its completion handle
func (l *Link) Send(ctx context.Context, cmd uint8, payload []byte) (*Call, error) {
	var call *Call
	var err error
	if doErr := l.Do(ctx, func(e *Engine) {
		call, err = e.Send(cmd, payload)
	}); doErr != nil {
		return nil, doErr
	}
	return call, err
}

// Call issues a request and waits for its reply
func (l *Link) Call(ctx context.Context, cmd uint8, payload []byte) ([]byte, error) {
	call, err := l.Send(ctx, cmd, payload)
	if err != nil {
		return nil, err
	}
	return call.Wait(ctx)
}

// Stats returns a snapshot of the engine statistics
func (l *Link) Stats(ctx context.Context) (Statistics, error) {
	var s Statistics
	err := l.Do(ctx, func(e *Engine) {
		s = e.Stats()
	})
	return s, err
}

// Pending returns the outstanding send, if any
func (l *Link) Pending(ctx context.Context) (Pending, bool, error) {
	var p Pending
	var ok bool
	err := l.Do(ctx, func(e *Engine) {
		p, ok = e.Pending()
	})
	return p, ok, err
}

// Reset resets the engine state
func (l *Link) Reset(ctx context.Context) error {
	return l.Do(ctx, func(e *Engine) {
		e.Reset()
	})
}

// write is the engine transport
func (l *Link) write(frame []byte) error {
	l.wbuf = AppendStream(l.wbuf[:0], frame)
	n, err := l.rw.Write(l.wbuf)
	if err != nil {
		return err
	}
	if n != len(l.wbuf) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(l.wbuf))
	}
	return nil
}

// schedule is the engine scheduler; fires are delivered through the loop
func (l *Link) schedule(d time.Duration, fire func()) Timer {
	return time.AfterFunc(d, func() {
		l.enqueue(fire)
	})
}

// enqueue hands fn to the loop. It reports false once the loop has exited.
func (l *Link) enqueue(fn func()) bool {
	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

func (l *Link) readLoop(errc chan<- error) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := l.rw.Read(buf)
		for i := 0; i < n; i++ {
			frame, decodeErr := l.dec.DecodeByte(buf[i])
			if decodeErr != nil {
				if !l.enqueue(func() { l.engine.drop(decodeErr, 0) }) {
					return
				}
				continue
			}
			if frame == nil {
				continue
			}
			owned := bytes.Clone(frame)
			if !l.enqueue(func() { l.process(owned) }) {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.log.Debug().Msg("stream closed")
			}
			errc <- err
			return
		}
	}
}

func (l *Link) process(frame []byte) {
	if err := l.engine.Process(frame); err != nil && errors.Is(err, ErrIO) {
		l.log.Warn().Err(err).Msg("response not delivered")
	}
}
