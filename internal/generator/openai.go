// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/northbound/ragcore/internal/domain"
)

const openAIChatURL = "https://api.openai.com/v1/chat/completions"

// OpenAIGenerator answers queries via the OpenAI chat completions API.
type OpenAIGenerator struct {
	apiKey  string
	modelID string
	client  *http.Client
}

// NewOpenAIGenerator constructs an OpenAIGenerator for modelID.
func NewOpenAIGenerator(apiKey, modelID string) *OpenAIGenerator {
	return &OpenAIGenerator{
		apiKey:  apiKey,
		modelID: modelID,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt, query, context_ string) (Response, error) {
	userContent := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context_, query)
	payload := map[string]interface{}{
		"model": g.modelID,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userContent},
		},
		"temperature": 0.2,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return Response{}, domain.Wrap(domain.KindInternal, "marshal generator request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(jsonData))
	if err != nil {
		return Response{}, domain.Wrap(domain.KindInternal, "build generator request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return Response{}, domain.Wrap(domain.KindUnavailable, "generator request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Response{}, classifyStatus(resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Response{}, domain.Wrap(domain.KindUnavailable, "decode generator response", err)
	}
	if len(result.Choices) == 0 {
		return Response{}, domain.New(domain.KindUnavailable, "generator returned no choices")
	}

	choice := result.Choices[0]
	if choice.FinishReason == "content_filter" {
		return Response{}, domain.New(domain.KindContentFiltered, "generator refused to answer")
	}

	modelID := result.Model
	if modelID == "" {
		modelID = g.modelID
	}
	answer := strings.TrimSpace(choice.Message.Content)
	tokens := result.Usage.TotalTokens
	if tokens == 0 {
		// Some deployments omit usage on certain response shapes; fall
		// back to a local token count rather than reporting zero.
		tokens = countTokens(systemPrompt) + countTokens(query) + countTokens(context_) + countTokens(answer)
	}
	return Response{
		AnswerText: answer,
		TokensUsed: tokens,
		ModelID:    modelID,
	}, nil
}

func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.New(domain.KindUnavailable, fmt.Sprintf("generator unavailable (status %d): %s", status, body))
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return domain.New(domain.KindValidation, fmt.Sprintf("generator rejected request (status %d): %s", status, body))
	default:
		return domain.New(domain.KindUnavailable, fmt.Sprintf("generator error (status %d): %s", status, body))
	}
}
