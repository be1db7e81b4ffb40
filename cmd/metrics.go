// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

var (
	registerOnce sync.Once

	packetsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scbs",
			Subsystem: "cell",
			Name:      "packets_received_total",
			Help:      "Lines received by the cell, by packet type and validity.",
		},
		[]string{"type", "valid"},
	)
	responsesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scbs",
			Subsystem: "cell",
			Name:      "responses_total",
			Help:      "Single responses sent by the cell, by result code.",
		},
		[]string{"code"},
	)
	packetsForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scbs",
			Subsystem: "cell",
			Name:      "packets_forwarded_total",
			Help:      "Packets passed downstream by the cell, by packet type.",
		},
		[]string{"type"},
	)
	cellID = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scbs",
			Name:      "cell_id",
			Help:      "Cell ID assigned by the last discover packet.",
		},
	)
)

func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(packetsReceived, responsesSent, packetsForwarded, cellID)
	})
}

// promObserver exports node activity as Prometheus metrics
type promObserver struct{}

var _ cell.Observer = promObserver{}

func newPromObserver() promObserver {
	registerMetrics()
	return promObserver{}
}

func (promObserver) Received(t scbs.PacketType, valid bool) {
	packetsReceived.WithLabelValues(t.String(), strconv.FormatBool(valid)).Inc()
}

func (promObserver) Responded(code scbs.ErrorCode) {
	responsesSent.WithLabelValues(responseCodeLabel(code)).Inc()
}

func (promObserver) Forwarded(t scbs.PacketType) {
	packetsForwarded.WithLabelValues(t.String()).Inc()
}

func (promObserver) Assigned(id uint16) {
	cellID.Set(float64(id))
}

func responseCodeLabel(code scbs.ErrorCode) string {
	if code == scbs.ErrCodeNone {
		return scbs.ResponseOK
	}
	return code.Value()
}

// newMetricsRouter builds the HTTP surface of a running cell
func newMetricsRouter(started time.Time) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	})
	return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := log.Debug()
		if status := c.Writer.Status(); status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	}
}

// serveMetrics exposes /metrics and /health on addr until ctx is cancelled
func serveMetrics(ctx context.Context, addr string) error {
	registerMetrics()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsRouter(time.Now()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
