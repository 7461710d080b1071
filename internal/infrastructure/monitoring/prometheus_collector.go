package monitoring

import (
	"strconv"
	"time"

	"djbook/internal/core/domain"
	"djbook/pkg/cache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.Metrics and the HTTP request metrics.
type PrometheusCollector struct {
	reg prometheus.Registerer

	// Counters
	violationsTotal      *prometheus.CounterVec
	banConflictsTotal    prometheus.Counter
	bookingsCreatedTotal *prometheus.CounterVec
	presentationsTotal   *prometheus.CounterVec
	httpRequestsTotal    *prometheus.CounterVec

	// Histograms
	httpRequestDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers the metrics on reg. A nil reg uses the
// default registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		reg: reg,

		violationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "djbook_violations_total",
			Help: "Violations recorded by the abuse ledger, by resulting decision",
		}, []string{"decision"}),

		banConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "djbook_ban_update_conflicts_total",
			Help: "Ban record writes rejected because the stored version changed",
		}),

		bookingsCreatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "djbook_bookings_created_total",
			Help: "Bookings created, by venue",
		}, []string{"venue"}),

		presentationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "djbook_presentations_total",
			Help: "Bookings presented to viewers, by whether the streaming link was revealed",
		}, []string{"link"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "djbook_http_requests_total",
			Help: "HTTP requests handled",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "djbook_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}, []string{"method", "route"}),
	}
}

func (p *PrometheusCollector) RecordViolation(decision domain.EnforcementDecision) {
	p.violationsTotal.WithLabelValues(string(decision)).Inc()
}

func (p *PrometheusCollector) RecordBanUpdateConflict() {
	p.banConflictsTotal.Inc()
}

func (p *PrometheusCollector) RecordBookingCreated(venueName string) {
	p.bookingsCreatedTotal.WithLabelValues(venueName).Inc()
}

func (p *PrometheusCollector) RecordPresentation(linkVisible bool) {
	label := "redacted"
	if linkVisible {
		label = "visible"
	}
	p.presentationsTotal.WithLabelValues(label).Inc()
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RegisterCacheStats exposes a cache's hit, miss and size counters read at
// scrape time.
func (p *PrometheusCollector) RegisterCacheStats(name string, stats func() cache.Stats) {
	factory := promauto.With(p.reg)
	labels := prometheus.Labels{"cache": name}

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name:        "djbook_cache_hits_total",
		Help:        "Cache hits",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Hits) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name:        "djbook_cache_misses_total",
		Help:        "Cache misses",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Misses) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "djbook_cache_entries",
		Help:        "Entries currently cached",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Size) })
}
