// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

// StatsFunc returns a statistics snapshot for the status endpoint
type StatsFunc func(ctx context.Context) (duplex.Statistics, error)

// NewRouter builds the status router: /health, /stats and /metrics
func NewRouter(node string, logger zerolog.Logger, stats StatsFunc) *gin.Engine {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	started := time.Now()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(RequestMetricsMiddleware(node))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"node":   node,
			"uptime": time.Since(started).String(),
		})
	})

	r.GET("/stats", func(c *gin.Context) {
		s, err := stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"frames_in":       s.FramesReceived,
			"frames_out":      s.FramesSent,
			"dispatched":      s.Dispatched,
			"rejected":        s.Rejected,
			"replayed":        s.Replayed,
			"tag_collisions":  s.TagCollisions,
			"crc_errors":      s.CRCErrors,
			"malformed":       s.MalformedFrames,
			"stray_responses": s.StrayResponses,
			"sends":           s.Sends,
			"retransmits":     s.Retransmits,
			"completed":       s.Completed,
			"timeouts":        s.Timeouts,
			"io_errors":       s.IOErrors,
			"frame_rate":      s.FrameRate,
			"error_rate":      s.ErrorRate,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Serve runs the status endpoint on addr until ctx is done
func Serve(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.Info().Str("addr", addr).Msg("status endpoint listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	}
}

func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		RecordHTTPRequest(node, c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
