package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/product-advisor/internal/config"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

const (
	maxJSONBodyBytes   = 64 << 10
	maxUploadBodyBytes = 8 << 20
)

// Metrics instruments the HTTP surface and exposes the registry.
type Metrics interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// Deps are the services behind the API. Status, Probes and Metrics are
// optional.
type Deps struct {
	Chat     ports.ChatService
	Reload   ports.ReloadService
	Uploader ports.ProductUploader
	Company  ports.CompanyInfoReader
	Status   ports.IndexStatusReader
	Probes   map[string]ports.Pinger
	Metrics  Metrics
	Logger   *slog.Logger
}

type Router struct {
	cfg      config.Config
	deps     Deps
	validate *validator.Validate
	contract *apiContract
	logger   *slog.Logger
}

func NewRouter(cfg config.Config, deps Deps) (*Router, error) {
	contract, err := loadContract()
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		deps:     deps,
		validate: newValidator(),
		contract: contract,
		logger:   logger,
	}, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware(rt.logger))
	if rt.deps.Metrics != nil {
		r.Use(rt.deps.Metrics.Middleware)
	}

	r.Get("/api/health", rt.health)
	r.Get("/api/health/deps", rt.healthDeps)
	r.Get("/openapi.json", rt.contract.serveJSON)
	if rt.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.deps.Metrics.Handler())
	}

	// One bucket and one in-flight cap for the whole group.
	limit := rateLimitMiddleware(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	backpressure := backpressureMiddleware(rt.cfg.BackpressureMaxInFlight, rt.cfg.BackpressureWait)

	r.Group(func(r chi.Router) {
		r.Use(limit, backpressure, rt.contract.validationMiddleware)

		r.Post("/api/chat", rt.chat)
		r.Post("/api/cancel", rt.cancel)
		r.Post("/api/clear", rt.clear)
		r.Get("/api/company-info", rt.companyInfo)

		r.With(tokenMiddleware(rt.cfg.ReloadToken)).Post("/api/reload-data", rt.reloadData)
		r.With(tokenMiddleware(rt.cfg.AdminToken, rt.cfg.ReloadToken)).Post("/api/admin/products", rt.uploadProduct)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", RequestID: requestIDFromContext(r.Context())})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", RequestID: requestIDFromContext(r.Context())})
	})
	return r
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

