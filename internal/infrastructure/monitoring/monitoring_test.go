package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"djbook/internal/core/domain"
	"djbook/pkg/cache"
	"djbook/pkg/clock"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_CoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordViolation(domain.DecisionWarn)
	c.RecordViolation(domain.DecisionWarn)
	c.RecordViolation(domain.DecisionPermanentBan)
	c.RecordBanUpdateConflict()
	c.RecordBookingCreated("The Basement")
	c.RecordPresentation(true)
	c.RecordPresentation(false)
	c.RecordPresentation(false)
	c.RecordHTTPRequest("GET", "/api/v1/bookings/:id", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.violationsTotal.WithLabelValues("warn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.violationsTotal.WithLabelValues("permanent_ban")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.banConflictsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bookingsCreatedTotal.WithLabelValues("The Basement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.presentationsTotal.WithLabelValues("visible")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.presentationsTotal.WithLabelValues("redacted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/api/v1/bookings/:id", "200")))
}

func TestPrometheusCollector_CacheStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RegisterCacheStats("venues", func() cache.Stats {
		return cache.Stats{Size: 3, Hits: 10, Misses: 4}
	})

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 10.0, values["djbook_cache_hits_total"])
	assert.Equal(t, 4.0, values["djbook_cache_misses_total"])
	assert.Equal(t, 3.0, values["djbook_cache_entries"])
}

func TestHealthChecker_CheckAll(t *testing.T) {
	now := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)
	h := NewHealthChecker(clock.NewFake(now))

	h.AddStoreCheck("store", func(context.Context) error { return nil }, 0, time.Second)
	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, now, status.Timestamp)
	assert.Equal(t, StatusHealthy, status.Checks["store"])
	assert.True(t, h.IsReady(context.Background()))

	h.AddStoreCheck("redis", func(context.Context) error { return errors.New("connection refused") }, 0, time.Second)
	h.AddCheck("flag", func(context.Context) (bool, error) { return false, nil }, 0, 0)

	status = h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "connection refused", status.Checks["redis"])
	assert.Equal(t, "check failed", status.Checks["flag"])
	assert.False(t, h.IsReady(context.Background()))
}

func TestHealthChecker_TimeoutApplied(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddStoreCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 0, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Contains(t, status.Checks["slow"], "deadline")
}

func TestHealthChecker_BackgroundReportsFailures(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddStoreCheck("down", func(context.Context) error { return errors.New("down") }, 5*time.Millisecond, time.Second)

	var failures atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.StartBackgroundChecks(ctx, func(name string, err error) {
		if name == "down" && err != nil {
			failures.Add(1)
		}
	})

	assert.Eventually(t, func() bool { return failures.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
