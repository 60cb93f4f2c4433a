package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics serves the watcher process: change batches, re-embedding
// runs and the reload events it fans out.
type WorkerMetrics struct {
	registry *prometheus.Registry

	watchTriggers prometheus.Counter
	publishTotal  *prometheus.CounterVec
	vectorRuns    *prometheus.CounterVec
	vectorDocs    *prometheus.CounterVec
	vectorChunks  prometheus.Counter

	*IndexMetrics
	*ResilienceMetrics
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"service": service},
		}
	}

	m := &WorkerMetrics{
		registry:          registry,
		watchTriggers:     prometheus.NewCounter(opts("watch_triggers_total", "Debounced file system change batches.")),
		publishTotal:      prometheus.NewCounterVec(opts("reload_publish_total", "Reload events published to other instances by status."), []string{"status"}),
		vectorRuns:        prometheus.NewCounterVec(opts("vectorize_runs_total", "Re-embedding runs of changed documents by status."), []string{"status"}),
		vectorDocs:        prometheus.NewCounterVec(opts("vectorize_documents_total", "Documents offered for embedding by outcome."), []string{"outcome"}),
		vectorChunks:      prometheus.NewCounter(opts("vectorize_chunks_total", "Chunks written to the vector collection.")),
		IndexMetrics:      NewIndexMetrics(registry, service),
		ResilienceMetrics: NewResilienceMetrics(registry, service),
	}
	registry.MustRegister(m.watchTriggers, m.publishTotal, m.vectorRuns, m.vectorDocs, m.vectorChunks)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) ObserveWatchTrigger() {
	m.watchTriggers.Inc()
}

func (m *WorkerMetrics) ObservePublish(err error) {
	m.publishTotal.WithLabelValues(statusLabel(err)).Inc()
}

// ObserveVectorize records one re-embedding run. Counts from an aborted run
// are still added: the documents before the failure were written.
func (m *WorkerMetrics) ObserveVectorize(indexed, chunks, skipped int, err error) {
	m.vectorRuns.WithLabelValues(statusLabel(err)).Inc()
	m.vectorDocs.WithLabelValues("indexed").Add(float64(indexed))
	m.vectorDocs.WithLabelValues("skipped").Add(float64(skipped))
	m.vectorChunks.Add(float64(chunks))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
