// Copyright (c) 2025 Northbound System
package widget

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northbound/ragcore/internal/domain"
)

func TestScriptHandler_ServesActiveEmbed(t *testing.T) {
	embed := &domain.EmbedCode{
		ID:     "embed-1",
		APIKey: "sk-widget-1",
		Active: true,
		Config: domain.WidgetConfig{
			WelcomeMessages: []string{"Hi there", "Need help?"},
			Placeholder:     "Ask a question...",
			ShowSources:     true,
		},
	}
	h := NewScriptHandler(func(id string) (*domain.EmbedCode, error) {
		require.Equal(t, "embed-1", id)
		return embed, nil
	})

	r := httptest.NewRequest(http.MethodGet, "/widget/embed-1.js", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")

	body := w.Body.String()
	assert.Contains(t, body, `"embed-1"`)
	assert.Contains(t, body, `"sk-widget-1"`)
	assert.Contains(t, body, "Hi there")
}

func TestScriptHandler_UnknownEmbedIsNotFound(t *testing.T) {
	h := NewScriptHandler(func(id string) (*domain.EmbedCode, error) {
		return nil, domain.New(domain.KindNotFound, "no such embed code")
	})

	r := httptest.NewRequest(http.MethodGet, "/widget/missing.js", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestScriptHandler_InactiveEmbedIsNotFound(t *testing.T) {
	h := NewScriptHandler(func(id string) (*domain.EmbedCode, error) {
		return &domain.EmbedCode{ID: id, Active: false}, nil
	})

	r := httptest.NewRequest(http.MethodGet, "/widget/disabled.js", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestScriptHandler_MissingEmbedIDIsBadRequest(t *testing.T) {
	h := NewScriptHandler(func(id string) (*domain.EmbedCode, error) {
		t.Fatal("lookup should not be called without an embed id")
		return nil, nil
	})

	r := httptest.NewRequest(http.MethodGet, "/widget/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}
