package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

const probeTimeout = 3 * time.Second

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "chat", err))
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := validateRequest(rt.validate, "chat", req); err != nil {
		writeError(w, r, err)
		return
	}

	rid := req.RequestID
	if rid == "" {
		rid = requestIDFromContext(r.Context())
	}
	resp, err := rt.deps.Chat.Handle(r.Context(), domain.ChatRequest{
		SessionID: req.SessionID,
		RequestID: rid,
		Message:   req.Message,
		Mode:      domain.AnswerMode(req.Mode),
	})
	annotate(r.Context(), "session_id", req.SessionID, "rid", rid)
	if resp != nil {
		annotate(r.Context(), "intent", resp.Intent)
	}
	if err != nil {
		// Rate-limited, busy and cancelled turns still carry a reply.
		if resp != nil {
			writeFailure(w, r, err, resp)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "cancel", err))
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if err := validateRequest(rt.validate, "cancel", req); err != nil {
		writeError(w, r, err)
		return
	}
	cancelled := rt.deps.Chat.Cancel(req.RequestID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "rid": req.RequestID, "cancelled": cancelled})
}

func (rt *Router) clear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "clear", err))
		return
	}
	if err := validateRequest(rt.validate, "clear", req); err != nil {
		writeError(w, r, err)
		return
	}
	sid := strings.TrimSpace(req.SessionID)
	if sid == "" {
		sid = "default"
	}
	if err := rt.deps.Chat.Clear(r.Context(), sid); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session_id": sid})
}

func (rt *Router) reloadData(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "reload", err))
		return
	}
	if err := validateRequest(rt.validate, "reload", req); err != nil {
		writeError(w, r, err)
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "api"
	}
	report, err := rt.deps.Reload.Reload(r.Context(), reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		domain.ReloadReport
	}{OK: true, ReloadReport: report})
}

func (rt *Router) uploadProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodyBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload product", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	result, err := rt.deps.Uploader.UploadProduct(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.logger.Info("product_uploaded", "request_id", requestIDFromContext(r.Context()), "saved_as", result.SavedAs, "known_models", result.KnownModels)
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		domain.UploadResult
	}{OK: true, UploadResult: result})
}

func (rt *Router) companyInfo(w http.ResponseWriter, r *http.Request) {
	info := rt.deps.Company.CompanyInfo()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"path":      rt.cfg.CompanyInfoPath,
		"parsed":    info,
		"raw":       info.Raw,
	})
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":                   true,
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
		"prompt_version":       rt.cfg.PromptVersion,
		"models":               map[string]string{"intent": rt.cfg.OllamaIntentModel, "answer": rt.cfg.OllamaAnswerModel},
		"reload_token_enabled": rt.cfg.ReloadToken != "",
		"admin_token_enabled":  rt.cfg.AdminToken != "",
		"max_concurrent":       rt.cfg.OllamaMaxConcurrent,
		"queue_timeout_ms":     rt.cfg.OllamaQueueTimeout.Milliseconds(),
		"strict_allowlist":     rt.cfg.StrictAllowlist,
		"bm25_enabled":         rt.cfg.BM25Enabled,
		"system_bm25_enabled":  rt.cfg.SystemBM25Enabled,
		"fusion_enabled":       rt.cfg.FusionEnabled,
	}
	if rt.deps.Status != nil {
		out["index"] = rt.deps.Status.Status(r.Context())
	}
	writeJSON(w, http.StatusOK, out)
}

// healthDeps probes every dependency concurrently and reports 503 when any
// probe fails.
func (rt *Router) healthDeps(w http.ResponseWriter, r *http.Request) {
	type probeResult struct {
		name string
		err  error
	}
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	results := make(chan probeResult, len(rt.deps.Probes))
	for name, probe := range rt.deps.Probes {
		go func(name string) {
			results <- probeResult{name: name, err: probe.Ping(ctx)}
		}(name)
	}

	deps := make(map[string]bool, len(rt.deps.Probes))
	errs := make([]string, 0)
	for range rt.deps.Probes {
		res := <-results
		deps[res.name] = res.err == nil
		if res.err != nil {
			errs = append(errs, res.name+": "+res.err.Error())
		}
	}
	sort.Strings(errs)

	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ok":        len(errs) == 0,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"deps":      deps,
		"errors":    errs,
	})
}
