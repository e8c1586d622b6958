// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics collects and exposes Prometheus metrics for the
// authentication service.
//
// # Architecture
//
// Metrics are registered on an injected [prometheus.Registerer] rather than
// the global default, so tests can use a fresh registry per case and the
// composition root decides what is exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reactforge_auth"

// Outcome labels for [Collector.RecordAttempt].
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Collector records authentication and HTTP boundary metrics.
type Collector struct {
	attempts        *prometheus.CounterVec
	sessionsCreated *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// NewCollector creates a [Collector] and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Authentication attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions issued, by account provider.",
		}, []string{"provider"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limit budget.",
		}, []string{"bucket"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.attempts,
		c.sessionsCreated,
		c.rateLimited,
		c.requests,
		c.latency,
	)

	return c
}

// RecordAttempt counts one signup, login, oauth or logout attempt.
func (c *Collector) RecordAttempt(operation, outcome string) {
	c.attempts.WithLabelValues(operation, outcome).Inc()
}

// RecordSessionCreated counts an issued session.
func (c *Collector) RecordSessionCreated(provider string) {
	c.sessionsCreated.WithLabelValues(provider).Inc()
}

// RecordRateLimited counts a request rejected by the named budget.
func (c *Collector) RecordRateLimited(bucket string) {
	c.rateLimited.WithLabelValues(bucket).Inc()
}

// ObserveRequest records a finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
