package ollama

import (
	"context"
	"errors"
	"io"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/infrastructure/resilience"
)

const serviceName = "ollama"

// errStreamTruncated means the generate stream ended before its done frame,
// which happens when the model server restarts mid-answer.
var errStreamTruncated = errors.New("ollama stream ended before done")

// classifyOllamaError extends the HTTP rules with the two generation cases:
// a user stop is never a dependency failure, a truncated stream is.
func classifyOllamaError(err error) resilience.ErrorClassification {
	if errors.Is(err, domain.ErrCancelled) {
		return resilience.Ignore
	}
	if errors.Is(err, errStreamTruncated) || errors.Is(err, io.ErrUnexpectedEOF) {
		return resilience.Transient
	}
	return resilience.ClassifyHTTP(err)
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, fn, classifyOllamaError)
	} else {
		err = fn(ctx)
	}
	return resilience.AsTemporary(operation, err, classifyOllamaError)
}
