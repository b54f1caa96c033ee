// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/northbound/ragcore/internal/logger"
)

// TrafficLogger creates a middleware that logs HTTP request entry and exit.
// Health polling and the widget WebSocket upgrade are excluded to reduce
// noise; the widget connection logs its own lifecycle in internal/widget.
func TrafficLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		skipPaths := []string{"/api/v1/health", "/widget/ws"}
		shouldLog := true
		for _, path := range skipPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				shouldLog = false
				break
			}
		}

		if shouldLog {
			logger.Printf("[HTTP] -> %s %s", r.Method, r.URL.Path)
		}

		// Wrap ResponseWriter to capture status code, preserving the
		// Flusher interface for the chat-streaming endpoints.
		var rw http.ResponseWriter
		if flusher, ok := w.(http.Flusher); ok {
			rw = &responseWriterWithFlush{
				responseWriter: responseWriter{ResponseWriter: w, statusCode: http.StatusOK},
				Flusher:        flusher,
			}
		} else {
			rw = &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		}

		next.ServeHTTP(rw, r)

		if !shouldLog {
			return
		}

		var statusCode int
		if rwWithFlush, ok := rw.(*responseWriterWithFlush); ok {
			statusCode = rwWithFlush.statusCode
		} else if rwBasic, ok := rw.(*responseWriter); ok {
			statusCode = rwBasic.statusCode
		} else {
			statusCode = http.StatusOK
		}
		logger.Printf("[HTTP] <- %d (%s) %s %s", statusCode, time.Since(start), r.Method, r.URL.Path)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// responseWriterWithFlush wraps ResponseWriter and preserves Flusher interface
type responseWriterWithFlush struct {
	responseWriter
	http.Flusher
}

func (rw *responseWriterWithFlush) Flush() {
	rw.Flusher.Flush()
}
