// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry exposes Prometheus metrics for the insight
// service: session engine events and the HTTP surface.
package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// versionsCreated counts new version snapshots.
	versionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "session",
		Name:      "versions_created_total",
		Help:      "Total versions created across all sessions",
	})

	// branches counts branch/revert operations.
	branches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "session",
		Name:      "branches_total",
		Help:      "Total branch operations",
	})

	// nodesPruned counts versions removed by pruning.
	nodesPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "session",
		Name:      "versions_pruned_total",
		Help:      "Total versions removed by pruning",
	})

	// sessionsDeleted counts explicit session deletions.
	sessionsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "session",
		Name:      "deleted_total",
		Help:      "Total sessions deleted",
	})

	// refreshMisses counts keys skipped by the batched TTL refresh.
	refreshMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "session",
		Name:      "ttl_refresh_missed_total",
		Help:      "Total keys missing from a batched TTL refresh",
	})

	// httpRequests counts HTTP requests by method, route, and status.
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// httpDuration measures request latency by route.
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "insight",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})
)

// EngineMetrics implements the session engine's Metrics interface.
type EngineMetrics struct{}

func (EngineMetrics) VersionCreated() { versionsCreated.Inc() }

func (EngineMetrics) BranchCreated() { branches.Inc() }

func (EngineMetrics) NodesPruned(n int) { nodesPruned.Add(float64(n)) }

func (EngineMetrics) SessionDeleted() { sessionsDeleted.Inc() }

func (EngineMetrics) RefreshMissed(n int) { refreshMisses.Add(float64(n)) }

// GinMiddleware records request counts and latency per route. Uses the
// route template, not the raw path, to keep label cardinality bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route,
			strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default Prometheus registry, mounted at /metrics.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
