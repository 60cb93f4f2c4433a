package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

const namespace = "advisor"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatRequestsTotal  *prometheus.CounterVec
	allowlistSize      prometheus.Histogram
	blockedTotal       prometheus.Counter
	lowConfidenceTotal prometheus.Counter
	generationTotal    *prometheus.CounterVec
	generationDuration prometheus.Histogram

	*IndexMetrics
	*ResilienceMetrics
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "chat",
			Name:        "requests_total",
			Help:        "Chat turns by resolved intent.",
			ConstLabels: constLabels,
		},
		[]string{"intent"},
	)
	allowlistSize := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "chat",
			Name:        "allowlist_size",
			Help:        "Number of permitted model identifiers per product turn.",
			Buckets:     []float64{0, 1, 2, 4, 8, 12, 16, 24},
			ConstLabels: constLabels,
		},
	)
	blockedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "chat",
			Name:        "blocked_answers_total",
			Help:        "Answers replaced because they named models outside the allowlist.",
			ConstLabels: constLabels,
		},
	)
	lowConfidenceTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "fusion",
			Name:        "low_confidence_total",
			Help:        "Fusion runs whose lexical and vector candidates barely overlapped.",
			ConstLabels: constLabels,
		},
	)
	generationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "generation",
			Name:        "total",
			Help:        "Generation calls by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	generationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "generation",
			Name:        "duration_seconds",
			Help:        "Duration of generation calls that reached the model.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatRequestsTotal,
		allowlistSize,
		blockedTotal,
		lowConfidenceTotal,
		generationTotal,
		generationDuration,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		service:            service,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		chatRequestsTotal:  chatRequestsTotal,
		allowlistSize:      allowlistSize,
		blockedTotal:       blockedTotal,
		lowConfidenceTotal: lowConfidenceTotal,
		generationTotal:    generationTotal,
		generationDuration: generationDuration,
		IndexMetrics:       NewIndexMetrics(registry, service),
		ResilienceMetrics:  NewResilienceMetrics(registry, service),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

var knownPaths = map[string]bool{
	"/":                   true,
	"/api/chat":           true,
	"/api/cancel":         true,
	"/api/clear":          true,
	"/api/reload-data":    true,
	"/api/admin/products": true,
	"/api/health":         true,
	"/api/health/deps":    true,
	"/api/company-info":   true,
	"/metrics":            true,
	"/openapi.json":       true,
}

// normalizePath folds unknown paths into one label value.
func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}

func (m *HTTPServerMetrics) ObserveChat(intent domain.Intent, allowlist int, blocked, lowConfidence bool) {
	label := string(intent)
	if label == "" {
		label = "unknown"
	}
	m.chatRequestsTotal.WithLabelValues(label).Inc()
	if intent.IsProduct() {
		m.allowlistSize.Observe(float64(allowlist))
	}
	if blocked {
		m.blockedTotal.Inc()
	}
	if lowConfidence {
		m.lowConfidenceTotal.Inc()
	}
}

func (m *HTTPServerMetrics) ObserveGeneration(outcome string, d time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.generationTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.generationDuration.Observe(d.Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
