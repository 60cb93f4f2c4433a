package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// statusClientClosedRequest is the nginx convention for a request abandoned
// by its caller. A stopped generation answers with it.
const statusClientClosedRequest = 499

// Checked in order; the first kind the error carries wins.
var errorStatuses = []struct {
	kind   error
	status int
	label  string
}{
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrCancelled, statusClientClosedRequest, "cancelled"},
	{domain.ErrBusy, http.StatusServiceUnavailable, "busy"},
	{domain.ErrTemporary, http.StatusServiceUnavailable, "temporary"},
}

func classifyError(err error) (int, string) {
	for _, e := range errorStatuses {
		if domain.IsKind(err, e.kind) {
			return e.status, e.label
		}
	}
	return http.StatusInternalServerError, "internal"
}

func mapErrorToHTTPStatus(err error) int {
	status, _ := classifyError(err)
	return status
}

// publicErrorMessage hides internal failure details from clients.
func publicErrorMessage(status int, err error) string {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		return "internal error"
	}
	return err.Error()
}

// writeFailure sends payload with the status err maps to. Busy and
// rate-limited turns tell the client when to try again.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, payload any) {
	status, label := classifyError(err)
	annotate(r.Context(), "error_kind", label)
	if status == http.StatusTooManyRequests || domain.IsKind(err, domain.ErrBusy) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classifyError(err)
	resp := errorResponse{
		Error:     publicErrorMessage(status, err),
		Details:   validationDetails(err),
		RequestID: requestIDFromContext(r.Context()),
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		slog.Error("http_handler_failed", "request_id", resp.RequestID, "path", r.URL.Path, "error", err)
	}
	writeFailure(w, r, err, resp)
}
