package generation

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// Token is the cancellation handle of one in-flight request.
type Token struct {
	flag   atomic.Bool
	cancel context.CancelCauseFunc
}

// Cancelled is polled by streaming generators between chunks.
func (t *Token) Cancelled() bool {
	return t.flag.Load()
}

func (t *Token) Cancel() {
	t.flag.Store(true)
	t.cancel(domain.ErrCancelled)
}

// Registry maps request ids to cancellation tokens.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// Register creates a token for rid. The returned context ends when the token
// is cancelled; done must be called once the request finishes.
func (r *Registry) Register(ctx context.Context, rid string) (context.Context, *Token, func()) {
	cctx, cancel := context.WithCancelCause(ctx)
	tok := &Token{cancel: cancel}

	r.mu.Lock()
	r.tokens[rid] = tok
	r.mu.Unlock()

	done := func() {
		r.mu.Lock()
		if r.tokens[rid] == tok {
			delete(r.tokens, rid)
		}
		r.mu.Unlock()
		cancel(nil)
	}
	return cctx, tok, done
}

// Cancel flags the request with the given id. It reports false for unknown
// or already finished requests.
func (r *Registry) Cancel(rid string) bool {
	r.mu.Lock()
	tok, ok := r.tokens[rid]
	r.mu.Unlock()
	if !ok {
		return false
	}
	tok.Cancel()
	return true
}

func (r *Registry) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
