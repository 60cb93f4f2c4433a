package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// IndexMetrics tracks catalog, system corpus and alias rebuilds.
type IndexMetrics struct {
	reloadTotal    *prometheus.CounterVec
	reloadDuration prometheus.Histogram
	indexSize      *prometheus.GaugeVec
}

func NewIndexMetrics(reg prometheus.Registerer, service string) *IndexMetrics {
	constLabels := prometheus.Labels{"service": service}
	m := &IndexMetrics{
		reloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "index",
				Name:        "reload_total",
				Help:        "Index rebuilds by trigger and status.",
				ConstLabels: constLabels,
			},
			[]string{"trigger", "status"},
		),
		reloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "index",
				Name:        "reload_duration_seconds",
				Help:        "Duration of successful index rebuilds.",
				Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
				ConstLabels: constLabels,
			},
		),
		indexSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "index",
				Name:        "documents",
				Help:        "Entries held by each in-memory index after the last rebuild.",
				ConstLabels: constLabels,
			},
			[]string{"index"},
		),
	}
	reg.MustRegister(m.reloadTotal, m.reloadDuration, m.indexSize)
	return m
}

func (m *IndexMetrics) ObserveReload(trigger string, report domain.ReloadReport, err error) {
	if trigger == "" {
		trigger = "unknown"
	}
	if err != nil {
		m.reloadTotal.WithLabelValues(trigger, "error").Inc()
		return
	}
	m.reloadTotal.WithLabelValues(trigger, "success").Inc()
	m.reloadDuration.Observe(float64(report.DurationMS) / 1000)
	m.indexSize.WithLabelValues("catalog").Set(float64(report.CatalogFiles))
	m.indexSize.WithLabelValues("models").Set(float64(report.KnownModels))
	m.indexSize.WithLabelValues("system_docs").Set(float64(report.SystemDocs))
	m.indexSize.WithLabelValues("aliases").Set(float64(report.Aliases))
}

// ResilienceMetrics records retries and circuit breaker states of outbound
// calls.
type ResilienceMetrics struct {
	retriesTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewResilienceMetrics(reg prometheus.Registerer, service string) *ResilienceMetrics {
	constLabels := prometheus.Labels{"service": service}
	m := &ResilienceMetrics{
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "resilience",
				Name:        "retries_total",
				Help:        "Retried outbound calls by operation.",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "resilience",
				Name:        "breaker_state",
				Help:        "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.retriesTotal, m.breakerState)
	return m
}

func (m *ResilienceMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

func (m *ResilienceMetrics) ObserveBreakerState(operation string, state gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(float64(state))
}
