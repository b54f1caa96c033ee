// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"net/http"
	"strings"

	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/server"
	"github.com/northbound/ragcore/internal/server/middleware"
	"github.com/northbound/ragcore/internal/widget"
)

// routerDeps carries every handler the HTTP surface mounts.
type routerDeps struct {
	workspaces  *database.WorkspaceStore
	chat        *server.ChatHandler
	sessions    *server.SessionsHandler
	search      *server.SearchHandler
	ingest      *server.IngestHandler
	health      *server.HealthHandler
	embedCodes  *server.EmbedCodeHandler
	workspace   *server.WorkspaceHandler
	widgetMgr   *widget.Manager
	widgetJS    *widget.ScriptHandler
}

// buildRouter wires every handler behind its route, tenant-staff endpoints
// behind AuthMiddleware and widget-facing endpoints behind the EmbedCode
// auth the widget transport owns itself.
func buildRouter(deps routerDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", deps.health.HandleHealth)
	mux.HandleFunc("/api/v1/workspaces", deps.workspace.HandleCreate)

	// Widget-facing surface: authenticated by EmbedCode API key inside the
	// handlers themselves, not by tenant-staff AuthMiddleware.
	mux.HandleFunc("/widget/ws", deps.widgetMgr.Handshake)
	mux.Handle("/widget/", deps.widgetJS)

	auth := server.AuthMiddleware(deps.workspaces)

	mux.Handle("/api/v1/chat/query", auth(http.HandlerFunc(deps.chat.HandleQuery)))
	mux.Handle("/api/v1/search", auth(http.HandlerFunc(deps.search.HandleSearch)))
	mux.Handle("/api/v1/documents", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			deps.ingest.HandleUpload(w, r)
			return
		}
		deps.ingest.HandleListDocuments(w, r)
	})))
	mux.Handle("/api/v1/documents/", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/documents/")
		id = strings.Trim(id, "/")
		deps.ingest.HandleGetDocument(w, r, id)
	})))
	mux.Handle("/api/v1/sessions/", auth(http.HandlerFunc(deps.sessions.HandleGetSession)))

	mux.Handle("/api/v1/embed-codes", auth(http.HandlerFunc(deps.embedCodes.HandleMint)))
	mux.Handle("/api/v1/embed-codes/", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := server.EmbedCodeID(r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "/rotate"):
			deps.embedCodes.HandleRotate(w, r, id)
		case strings.HasSuffix(r.URL.Path, "/deactivate"):
			deps.embedCodes.HandleDeactivate(w, r, id)
		default:
			http.NotFound(w, r)
		}
	})))

	return middleware.TrafficLogger(mux)
}
