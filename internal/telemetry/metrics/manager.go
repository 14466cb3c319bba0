package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests            *prometheus.CounterVec
	CounterHandleRequestPanic  prometheus.Counter
	CounterRateLimitedRequests prometheus.Counter
	CounterRecalculations      *prometheus.CounterVec
	CounterRecalculationErrors *prometheus.CounterVec
	CounterRecordsAwarded      *prometheus.CounterVec
	CounterRecordsRemoved      *prometheus.CounterVec

	// gauges
	GaugeRequests        prometheus.Gauge
	GaugeOpenConnections prometheus.Gauge
	GaugeLifeSignal      prometheus.Gauge

	// histograms
	HistogramRequestDuration       *prometheus.HistogramVec
	HistogramRecalculationDuration prometheus.Histogram
	HistogramCascadeSize           prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("backend", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("backend", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRateLimitedRequests := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_requests",
		Help:      "The total number of rate limited requests",
	})
	counterRecalculations := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "recalculations",
		Help:      "The total number of committed PR recalculation passes",
	}, []string{"trigger"})
	counterRecalculationErrors := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "recalculation_errors",
		Help:      "The total number of aborted PR recalculation passes",
	}, []string{"kind"})
	counterRecordsAwarded := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "records_awarded",
		Help:      "The total number of ledger rows created",
	}, []string{"category"})
	counterRecordsRemoved := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "records_removed",
		Help:      "The total number of ledger rows removed or replaced",
	}, []string{"category"})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeOpenConnections := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "open_connections",
		Help:      "Current number of open client connections",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})
	histogramRecalculationDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "recalculation_duration_seconds",
		Help:      "Duration of a single PR recalculation pass in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	histogramCascadeSize := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "recalculation_cascade_size",
		Help:      "Number of entries reclassified by a single recalculation pass",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})

	return &Manager{
		CounterRequests:                counterRequests,
		CounterHandleRequestPanic:      counterHandleRequestPanic,
		CounterRateLimitedRequests:     counterRateLimitedRequests,
		CounterRecalculations:          counterRecalculations,
		CounterRecalculationErrors:     counterRecalculationErrors,
		CounterRecordsAwarded:          counterRecordsAwarded,
		CounterRecordsRemoved:          counterRecordsRemoved,
		GaugeRequests:                  gaugeRequests,
		GaugeOpenConnections:           gaugeOpenConnections,
		GaugeLifeSignal:                gaugeLifeSignal,
		HistogramRequestDuration:       histogramRequestDuration,
		HistogramRecalculationDuration: histogramRecalculationDuration,
		HistogramCascadeSize:           histogramCascadeSize,
	}
}
