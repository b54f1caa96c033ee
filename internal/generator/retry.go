// Copyright (c) 2025 Northbound System
package generator

import (
	"context"
	"time"

	"github.com/northbound/ragcore/internal/domain"
)

// retryingGenerator retries an Unavailable failure exactly once, after a
// fixed delay, per §4.9.
type retryingGenerator struct {
	inner Generator
	delay time.Duration
}

// WithRetry wraps g so a single transient Unavailable failure is retried
// once before surfacing to the caller.
func WithRetry(g Generator) Generator {
	return &retryingGenerator{inner: g, delay: time.Second}
}

func (r *retryingGenerator) Generate(ctx context.Context, systemPrompt, query, context_ string) (Response, error) {
	resp, err := r.inner.Generate(ctx, systemPrompt, query, context_)
	if err == nil || !domain.Is(err, domain.KindUnavailable) {
		return resp, err
	}

	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return Response{}, domain.Wrap(domain.KindDeadlineExceeded, "generator retry canceled", ctx.Err())
	}
	return r.inner.Generate(ctx, systemPrompt, query, context_)
}
