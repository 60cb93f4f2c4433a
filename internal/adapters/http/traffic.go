package httpadapter

import (
	"context"
	"crypto/subtle"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

const (
	reloadTokenHeader = "X-Reload-Token"
	adminTokenHeader  = "X-Admin-Token"
)

// rateLimitMiddleware applies one token bucket to every request routed
// through it. Rejected requests get 429 with a Retry-After hint in whole
// seconds.
func rateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return passthrough
	}
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Reserve()
			if !res.OK() {
				writeRateLimited(w, r, time.Second)
				return
			}
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				writeRateLimited(w, r, delay)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func writeRateLimited(w http.ResponseWriter, r *http.Request, delay time.Duration) {
	seconds := int(math.Ceil(delay.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, r, domain.WrapError(domain.ErrRateLimited, "http", errors.New("too many requests")))
}

// backpressureMiddleware caps concurrent requests across every route it
// wraps. A request that cannot get a slot within wait is rejected with 503.
func backpressureMiddleware(maxInFlight int, wait time.Duration) func(http.Handler) http.Handler {
	if maxInFlight <= 0 {
		return passthrough
	}
	slots := make(chan struct{}, maxInFlight)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acquireSlot(r.Context(), slots, wait) {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, domain.WrapError(domain.ErrBusy, "http", errors.New("server overloaded")))
				return
			}
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		})
	}
}

func acquireSlot(ctx context.Context, slots chan struct{}, wait time.Duration) bool {
	select {
	case slots <- struct{}{}:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case slots <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// tokenMiddleware accepts a request when any configured token matches the
// X-Reload-Token or X-Admin-Token header or the token query parameter. With
// no tokens configured the route is open.
func tokenMiddleware(tokens ...string) func(http.Handler) http.Handler {
	accepted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			accepted = append(accepted, tok)
		}
	}
	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokenMatches(requestToken(r), accepted) {
				writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "http", errors.New("invalid token")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	for _, header := range []string{reloadTokenHeader, adminTokenHeader} {
		if tok := strings.TrimSpace(r.Header.Get(header)); tok != "" {
			return tok
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func tokenMatches(got string, accepted []string) bool {
	if got == "" {
		return false
	}
	for _, want := range accepted {
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1 {
			return true
		}
	}
	return false
}
