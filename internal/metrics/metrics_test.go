// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/reactforge-auth/internal/metrics"
)

/*
TestCollector_RecordAttempt counts attempts per label pair.
*/
func TestCollector_RecordAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordAttempt("login", metrics.OutcomeSuccess)
	c.RecordAttempt("login", metrics.OutcomeSuccess)
	c.RecordAttempt("login", metrics.OutcomeRejected)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "reactforge_auth_attempts_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			var outcome string
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" {
					outcome = label.GetValue()
				}
			}
			values[outcome] = metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, map[string]float64{"success": 2, "rejected": 1}, values)
}

/*
TestCollector_Counters checks that every recorder registers a series.
*/
func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordSessionCreated("google")
	c.RecordRateLimited("login")
	c.ObserveRequest(http.MethodPost, "/api/auth/login", http.StatusOK, 20*time.Millisecond)

	count, err := testutil.GatherAndCount(reg,
		"reactforge_auth_sessions_created_total",
		"reactforge_auth_rate_limited_total",
		"reactforge_auth_http_requests_total",
		"reactforge_auth_http_request_duration_seconds",
	)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

/*
TestHandler serves the text exposition format.
*/
func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.RecordRateLimited("global")

	server := httptest.NewServer(metrics.Handler(reg))
	defer server.Close()

	response, err := http.Get(server.URL)
	require.NoError(t, err)
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), `reactforge_auth_rate_limited_total{bucket="global"} 1`)
}
