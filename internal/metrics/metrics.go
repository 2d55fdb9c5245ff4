// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's dispatcher-facing instrumentation on a
// private registry (never the global default registry, so multiple
// daemons in one test binary never collide).
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	requestErrors  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New builds a Metrics instance with its counters and histogram
// registered on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taggablefs",
			Subsystem: "dispatcher",
			Name:      "requests_total",
			Help:      "Total requests handled by the dispatcher, by verb.",
		}, []string{"verb"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taggablefs",
			Subsystem: "dispatcher",
			Name:      "request_errors_total",
			Help:      "Requests that failed, by verb and errno.",
		}, []string{"verb", "errno"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taggablefs",
			Subsystem: "dispatcher",
			Name:      "request_duration_seconds",
			Help:      "Time to process one dispatcher request, by verb.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"verb"}),
	}

	registry.MustRegister(m.requestsTotal, m.requestErrors, m.requestLatency)
	return m
}

// Observe implements dispatch.Recorder: one observation per request,
// recording its verb, resulting errno (0 on success), and latency.
func (m *Metrics) Observe(verb string, errno int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(verb).Inc()
	if errno != 0 {
		m.requestErrors.WithLabelValues(verb, strconv.Itoa(errno)).Inc()
	}
	m.requestLatency.WithLabelValues(verb).Observe(duration.Seconds())
}

// Serve starts an HTTP listener exposing the registry at /metrics.
// Blocks until ctx is canceled, then shuts the listener down.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if logger != nil {
			logger.Info("metrics listener shutting down", "addr", addr)
		}
		return server.Shutdown(shutdownCtx)
	}
}
