// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package generator implements the Generator Adapter (C9): a thin client
// over an external large-language-model service.
package generator

import (
	"context"

	"github.com/northbound/ragcore/internal/domain"
)

// Response is one completion from a Generator.
type Response struct {
	AnswerText string
	TokensUsed int
	ModelID    string
	Confidence domain.Confidence // empty if the generator doesn't self-report
}

// Generator answers a query given an assembled context and a fully
// constructed system prompt. Implementations must map transient failures
// to domain.KindUnavailable (WithRetry retries those once after 1s),
// safety refusals to domain.KindContentFiltered, and malformed requests
// to domain.KindValidation.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, query, context_ string) (Response, error)
}
