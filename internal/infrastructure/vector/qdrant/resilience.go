package qdrant

import (
	"context"
	"net/http"

	"github.com/kirillkom/product-advisor/internal/infrastructure/resilience"
)

const serviceName = "qdrant"

// classifyQdrantError treats a 404 as the caller's problem: the collection
// or point is missing and retrying will not create it.
func classifyQdrantError(err error) resilience.ErrorClassification {
	if resilience.HasStatus(err, http.StatusNotFound) {
		return resilience.Ignore
	}
	return resilience.ClassifyHTTP(err)
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, fn, classifyQdrantError)
	} else {
		err = fn(ctx)
	}
	return resilience.AsTemporary(operation, err, classifyQdrantError)
}
