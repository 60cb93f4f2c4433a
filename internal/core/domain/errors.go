package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Adapters wrap failures with one of these so the HTTP layer and
// the chat pipeline can react without knowing which dependency failed.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTemporary marks a dependency failure that may clear on retry.
	ErrTemporary = errors.New("temporary failure")
	// ErrBusy means every generation slot stayed taken for the queue timeout.
	ErrBusy = errors.New("generation capacity exhausted")
	// ErrCancelled means the user stopped the turn through /api/cancel.
	ErrCancelled = errors.New("request cancelled")
	// ErrRateLimited means the session sent turns faster than the minimum
	// interval.
	ErrRateLimited = errors.New("rate limited")
)

// WrapError tags err with kind and the failing operation. Both stay visible
// to errors.Is.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
