// Copyright (c) 2025 Northbound System
package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbedCodeID(t *testing.T) {
	cases := map[string]string{
		"/api/v1/embed-codes/embed-1":              "embed-1",
		"/api/v1/embed-codes/embed-1/":             "embed-1",
		"/api/v1/embed-codes/embed-1/rotate":       "embed-1",
		"/api/v1/embed-codes/embed-1/deactivate":   "embed-1",
	}
	for path, want := range cases {
		assert.Equal(t, want, EmbedCodeID(path), "path=%s", path)
	}
}
