package httpadapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	requestIDHeader    = "X-Request-Id"
	maxRequestIDLength = 64
)

type (
	requestIDContextKey struct{}
	logNoteContextKey   struct{}
)

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

// requestIDMiddleware accepts a caller supplied X-Request-Id. Chat turns fall
// back to it as their cancel id when the body carries none.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, requestID)))
	})
}

// logNote collects attributes that handlers learn while serving, such as the
// session and the routed intent, for the access log line.
type logNote struct {
	mu    sync.Mutex
	attrs []any
}

// annotate adds key/value pairs to the access log line of the request.
func annotate(ctx context.Context, kv ...any) {
	note, ok := ctx.Value(logNoteContextKey{}).(*logNote)
	if !ok {
		return
	}
	note.mu.Lock()
	note.attrs = append(note.attrs, kv...)
	note.mu.Unlock()
}

// accessLogMiddleware writes one http_request line per request. Probe and
// scrape paths log at debug level.
func accessLogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			note := &logNote{}
			r = r.WithContext(context.WithValue(r.Context(), logNoteContextKey{}, note))

			next.ServeHTTP(recorder, r)

			remoteAddr := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				remoteAddr = host
			}
			attrs := []any{
				"request_id", requestIDFromContext(r.Context()),
				"method", r.Method,
				"route", routePattern(r),
				"status", recorder.statusCode,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"bytes", recorder.bytesWritten,
				"remote_addr", remoteAddr,
			}
			note.mu.Lock()
			attrs = append(attrs, note.attrs...)
			note.mu.Unlock()

			level := slog.LevelInfo
			switch {
			case recorder.statusCode >= 500:
				level = slog.LevelError
			case recorder.statusCode >= 400 && recorder.statusCode != statusClientClosedRequest:
				level = slog.LevelWarn
			case quietPath(r.URL.Path):
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "http_request", attrs...)
		})
	}
}

// routePattern is the matched chi pattern, or the raw path when nothing
// matched.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func quietPath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/api/health")
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
