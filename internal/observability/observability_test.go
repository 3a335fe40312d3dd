// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

func TestInitLogger(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	logger, err := InitLogger("sextant", "warn", &buf)
	require.Nil(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("visible")
	assert.NotContains(buf.String(), "hidden")
	assert.Contains(buf.String(), "visible")
	assert.Contains(buf.String(), "sextant")

	_, err = InitLogger("sextant", "loud", &buf)
	assert.NotNil(err)

	logger, err = InitLogger("sextant", "", &buf)
	require.Nil(t, err)
	assert.Equal(zerolog.InfoLevel, logger.GetLevel())
}

func TestRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordEvent("node-a", duplex.Event{Kind: duplex.EventReplayed})
	call := &duplex.Call{Command: 0x01, Err: duplex.ErrTimeout, Started: time.Now(), Finished: time.Now()}
	RecordCall("node-a", call)
	RecordHTTPRequest("node-a", "GET", "/health", 200, time.Millisecond)
}

func TestRouter(t *testing.T) {
	assert := assert.New(t)

	stats := duplex.NewStatistics()
	stats.Dispatched = 4
	r := NewRouter("node-a", zerolog.Nop(), func(ctx context.Context) (duplex.Statistics, error) {
		return stats, nil
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(float64(4), body["dispatched"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(http.StatusOK, w.Code)
	assert.Contains(w.Body.String(), `"node":"node-a"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(http.StatusOK, w.Code)
	assert.Contains(w.Body.String(), "sextant_http_requests_total")
}

func TestRouterStatsUnavailable(t *testing.T) {
	r := NewRouter("node-b", zerolog.Nop(), func(ctx context.Context) (duplex.Statistics, error) {
		return duplex.Statistics{}, duplex.ErrClosed
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "link closed")
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), zerolog.Nop())
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
