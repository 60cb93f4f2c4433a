// Package generation bounds concurrent calls to the answer model and tracks
// per-request cancellation.
package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

const (
	DefaultMaxConcurrent = 2
	DefaultQueueTimeout  = 6 * time.Second
)

// Gate is a counting semaphore with a bounded wait.
type Gate struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewGate(maxConcurrent int, timeout time.Duration) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if timeout <= 0 {
		timeout = DefaultQueueTimeout
	}
	return &Gate{sem: semaphore.NewWeighted(int64(maxConcurrent)), timeout: timeout}
}

// Acquire waits up to the queue timeout for a slot. It returns ErrBusy when
// the wait expires and the context error when ctx ends first.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrBusy, "acquire generation slot", err)
		}
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.sem.Release(1) })
	}, nil
}
