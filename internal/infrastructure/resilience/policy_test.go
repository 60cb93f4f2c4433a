package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

func TestRetryDelayGrowsUntilCap(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := p.delay(i + 1); got != w {
			t.Fatalf("delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestNormalizeFillsZeroFields(t *testing.T) {
	got := Config{Retry: RetryPolicy{InitialBackoff: time.Second, MaxBackoff: time.Millisecond}}.normalize()
	def := LookupPolicy()
	if got.Retry.MaxAttempts != def.Retry.MaxAttempts || got.Retry.Multiplier != def.Retry.Multiplier {
		t.Fatalf("retry defaults not applied: %+v", got.Retry)
	}
	if got.Retry.MaxBackoff != time.Second {
		t.Fatalf("max backoff must not undercut the initial backoff, got %v", got.Retry.MaxBackoff)
	}
	if got.Breaker.Disabled || got.Breaker.MinRequests != def.Breaker.MinRequests {
		t.Fatalf("breaker defaults not applied: %+v", got.Breaker)
	}
}

func TestGenerationPolicyDoesNotRetry(t *testing.T) {
	if GenerationPolicy().Retry.MaxAttempts != 1 {
		t.Fatalf("generation must run once")
	}
	if BroadcastPolicy().Retry.MaxAttempts <= LookupPolicy().Retry.MaxAttempts {
		t.Fatalf("broadcasts should be more persistent than lookups")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyHTTP(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{"cancelled", fmt.Errorf("search: %w", context.Canceled), Ignore},
		{"unavailable", &StatusError{Service: "qdrant", StatusCode: http.StatusServiceUnavailable}, Transient},
		{"bad request", &StatusError{Service: "qdrant", StatusCode: http.StatusBadRequest}, Ignore},
		{"network", fmt.Errorf("dial: %w", timeoutErr{}), Transient},
		{"decode", errors.New("decode search response: unexpected EOF"), Permanent},
	}
	for _, tc := range cases {
		if got := ClassifyHTTP(tc.err); got != tc.want {
			t.Fatalf("%s: ClassifyHTTP() = %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestNewStatusErrorKeepsBodyHead(t *testing.T) {
	rec := httptest.NewRecorder()
	http.Error(rec, "collection products not found", http.StatusNotFound)
	err := NewStatusError("qdrant", "search", rec.Result())
	if err.Error() != "qdrant search status: 404 Not Found: collection products not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !HasStatus(fmt.Errorf("wrapped: %w", err), http.StatusNotFound) {
		t.Fatalf("HasStatus should see through wrapping")
	}
}

func TestAsTemporary(t *testing.T) {
	transient := &StatusError{Service: "ollama", Operation: "embed", StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}
	if err := AsTemporary("ollama.embed", transient, nil); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	permanent := errors.New("decode embed response")
	if err := AsTemporary("ollama.embed", permanent, nil); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent failure must not be temporary: %v", err)
	}
	cancelled := domain.WrapError(domain.ErrCancelled, "generate", errors.New("stop"))
	if err := AsTemporary("ollama.generate", cancelled, func(error) ErrorClassification { return Transient }); err != cancelled {
		t.Fatalf("cancelled errors pass through unchanged, got %v", err)
	}
}
