// Copyright (c) 2025 Northbound System
package generator

import (
	"context"
	"fmt"
)

// MockGenerator echoes a deterministic canned answer, for tests and local
// development without a live LLM credential.
type MockGenerator struct{}

// NewMockGenerator constructs a MockGenerator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (g *MockGenerator) Generate(ctx context.Context, systemPrompt, query, context_ string) (Response, error) {
	answer := fmt.Sprintf("Based on the provided context, here is what I found regarding: %q", query)
	return Response{
		AnswerText: answer,
		TokensUsed: countTokens(systemPrompt) + countTokens(query) + countTokens(context_) + countTokens(answer),
		ModelID:    "mock-generator",
	}, nil
}
