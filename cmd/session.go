// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/Thermoquad/sextant/internal/observability"
	"github.com/Thermoquad/sextant/pkg/catalog"
	"github.com/Thermoquad/sextant/pkg/duplex"
)

// session is a running link over an open connection, answering peer
// requests from the command catalog
type session struct {
	conn     io.Closer
	connInfo string
	link     *duplex.Link
	catalog  *catalog.Catalog

	cancel context.CancelFunc
	runErr chan error
}

// startSession opens the configured connection and runs a link over it.
// observer, when set, is called for every engine event after it has been
// logged and counted.
func startSession(ctx context.Context, observer func(duplex.Event)) (*session, error) {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, err
	}
	return runSession(ctx, conn, connInfo, observer)
}

// runSession runs a link over an already open connection
func runSession(ctx context.Context, conn Connection, connInfo string, observer func(duplex.Event)) (*session, error) {
	node := cfg.Name
	engineLog := logger.With().Str("conn", connInfo).Logger()

	cat := catalog.New(cfg.Name, cfg.MaxPayload)
	link, err := duplex.NewLink(conn, cat, cfg.engineConfig(&engineLog, func(ev duplex.Event) {
		logEvent(ev)
		observability.RecordEvent(node, ev)
		if observer != nil {
			observer(ev)
		}
	}))
	if err != nil {
		conn.Close()
		return nil, err
	}
	cat.SetStatsSource(link.Engine().Stats)

	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		conn:     conn,
		connInfo: connInfo,
		link:     link,
		catalog:  cat,
		cancel:   cancel,
		runErr:   make(chan error, 1),
	}
	go func() {
		s.runErr <- link.Run(ctx)
	}()
	return s, nil
}

// call sends one request and waits for its completion, bounded by the
// configured retry budget
func (s *session) call(ctx context.Context, cmd uint8, payload []byte) (*duplex.Call, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.callTimeout())
	defer cancel()

	call, err := s.link.Send(ctx, cmd, payload)
	if err != nil {
		return nil, err
	}
	if _, err := call.Wait(ctx); err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// Context expired before the engine completed the call
		return nil, err
	}
	observability.RecordCall(cfg.Name, call)
	return call, nil
}

// done is closed when the link stops
func (s *session) done() <-chan error {
	return s.runErr
}

// close stops the link and closes the connection
func (s *session) close() error {
	s.cancel()
	err := s.conn.Close()
	if errors.Is(err, ErrConnectionClosed) {
		return nil
	}
	return err
}

// logEvent writes engine events to the command logger
func logEvent(ev duplex.Event) {
	entry := logger.Debug()
	switch ev.Kind {
	case duplex.EventTagCollision, duplex.EventIOError, duplex.EventCRCError:
		entry = logger.Warn()
	case duplex.EventCompleted:
		if ev.Err != nil {
			entry = logger.Warn()
		}
	}
	entry.Str("kind", ev.Kind.String()).Msg(duplex.FormatEvent(ev))
}
