// Copyright (c) 2025 Northbound System
package widget

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiKeyFromRequest_AuthorizationHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/widget/ws", nil)
	r.Header.Set("Authorization", "Bearer sk-abc123")

	assert.Equal(t, "sk-abc123", apiKeyFromRequest(r))
}

func TestApiKeyFromRequest_QueryParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/widget/ws?key=sk-xyz789", nil)

	assert.Equal(t, "sk-xyz789", apiKeyFromRequest(r))
}

func TestApiKeyFromRequest_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/widget/ws", nil)

	assert.Empty(t, apiKeyFromRequest(r))
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/widget/ws", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.RemoteAddr = "10.0.0.1:54321"

	assert.Equal(t, "203.0.113.5", clientIP(r))
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/widget/ws", nil)
	r.RemoteAddr = "198.51.100.9:1234"

	assert.Equal(t, "198.51.100.9:1234", clientIP(r))
}

func TestOriginAllowed_EmptyAllowlistAllowsAny(t *testing.T) {
	assert.True(t, originAllowed(nil, "https://example.com"))
}

func TestOriginAllowed_ExactMatch(t *testing.T) {
	allowed := []string{"https://example.com", "https://app.example.com"}

	assert.True(t, originAllowed(allowed, "https://app.example.com"))
	assert.False(t, originAllowed(allowed, "https://evil.example.com"))
}

func TestOriginAllowed_Wildcard(t *testing.T) {
	assert.True(t, originAllowed([]string{"*"}, "https://anything.test"))
}

func TestMailboxKey_ScopesBySession(t *testing.T) {
	assert.Equal(t, "widget:mailbox:sess-1", mailboxKey("sess-1"))
	assert.NotEqual(t, mailboxKey("sess-1"), mailboxKey("sess-2"))
}
