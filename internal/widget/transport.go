// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package widget implements the Widget Transport (C12): a WebSocket
// endpoint for embedded chat widgets, authenticated by an EmbedCode's API
// key, rate limited per IP, and forwarding chat turns to the RAG
// orchestrator. Grounded on the teacher's internal/server/websocket_handler.go
// connection registry and ping/pong keepalive, generalized from a bare
// notification fan-out to the full C12 message-type table.
package widget

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/rag"
)

const mailboxTTL = 7 * 24 * time.Hour

// Frame types, per §4.12 and §6's JSON frame format {type, data, id?, ts?}.
const (
	TypePing         = "ping"
	TypePong         = "pong"
	TypeHeartbeat    = "heartbeat"
	TypeTyping       = "typing"
	TypeChatMessage  = "chat_message"
	TypeChatChunk    = "chat_chunk"
	TypeChatComplete = "chat_complete"
	TypeClose        = "close"
	TypeError        = "error"
)

// Close codes from §6 used once a connection is already upgraded.
// Unauthorized/origin-denied/rate-limited rejections happen during
// Handshake, before the upgrade completes, so those are plain HTTP status
// codes (401/403/429) rather than WebSocket close codes — there is no
// WebSocket connection yet to close.
const (
	CloseNormal    = websocket.CloseNormalClosure
	CloseGoingAway = websocket.CloseGoingAway
)

// Frame is the wire format for every inbound and outbound message.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	ID   string          `json:"id,omitempty"`
	TS   int64           `json:"ts,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // origin is enforced explicitly in Handshake
}

// Config carries Manager construction parameters.
type Config struct {
	EmbedCodes         *database.EmbedCodeStore
	Orchestrator       *rag.Orchestrator
	Mailbox            *redis.Client // optional; enables offline delivery across reconnects
	IdleTimeout        time.Duration
	RateLimitPerMinute int
	StreamChunkSize    int // characters per chat_chunk frame; 0 uses the default
}

// Manager accepts widget WebSocket connections, authenticates them against
// an EmbedCode, enforces a per-IP rate limit, and runs each connection's
// single-threaded message loop.
type Manager struct {
	embedCodes   *database.EmbedCodeStore
	orchestrator *rag.Orchestrator
	mailbox      *redis.Client
	idleTimeout  time.Duration
	rateLimit    rate.Limit
	chunkSize    int

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	sessionsMu sync.Mutex
	sessions   map[string]map[*conn]struct{}
}

// NewManager constructs a Manager.
func NewManager(cfg Config) *Manager {
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = 120 * time.Second
	}
	perMin := cfg.RateLimitPerMinute
	if perMin <= 0 {
		perMin = 60
	}
	chunkSize := cfg.StreamChunkSize
	if chunkSize <= 0 {
		chunkSize = 80
	}
	return &Manager{
		embedCodes:   cfg.EmbedCodes,
		orchestrator: cfg.Orchestrator,
		mailbox:      cfg.Mailbox,
		idleTimeout:  idle,
		rateLimit:    rate.Limit(float64(perMin) / 60.0),
		chunkSize:    chunkSize,
		limiters:     make(map[string]*rate.Limiter),
		sessions:     make(map[string]map[*conn]struct{}),
	}
}

// mailboxKey mirrors the teacher's "mailbox:<client>" naming, scoped to a
// widget session rather than a drone client id.
func mailboxKey(sessionID string) string {
	return "widget:mailbox:" + sessionID
}

// queueMailbox stores a frame a session couldn't receive live, the same
// LPush-then-Expire pattern the teacher uses for offline notifications.
func (m *Manager) queueMailbox(sessionID string, f Frame) {
	if m.mailbox == nil || sessionID == "" {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.mailbox.LPush(ctx, mailboxKey(sessionID), data).Err(); err != nil {
		logger.Errorf("widget: mailbox enqueue failed: %v", err)
		return
	}
	m.mailbox.Expire(ctx, mailboxKey(sessionID), mailboxTTL)
}

// flushMailbox replays any frames queued for sessionID while the widget was
// disconnected, oldest first, then drains the key.
func (m *Manager) flushMailbox(ctx context.Context, c *conn) {
	if m.mailbox == nil || c.sessionID == "" {
		return
	}
	key := mailboxKey(c.sessionID)
	for {
		data, err := m.mailbox.RPop(ctx, key).Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			logger.Errorf("widget: mailbox flush failed: %v", err)
			return
		}
		var f Frame
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			continue
		}
		_ = c.send(f)
	}
}

// conn is one accepted widget connection.
type conn struct {
	ws          *websocket.Conn
	embed       *domain.EmbedCode
	sessionID   string
	idleTimeout time.Duration
	mgr         *Manager

	writeMu sync.Mutex
}

// apiKeyFromRequest extracts the embed's bearer key from either the
// Authorization header or a "key" query parameter, matching the two
// handshake forms §4.12 describes.
func apiKeyFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(strings.TrimSpace(auth), "Bearer ")
	}
	return r.URL.Query().Get("key")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

func (m *Manager) limiterFor(ip string) *rate.Limiter {
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	l, ok := m.limiters[ip]
	if !ok {
		l = rate.NewLimiter(m.rateLimit, int(m.rateLimit*60)+1)
		m.limiters[ip] = l
	}
	return l
}

// Handshake implements §4.12 steps 1-4: resolve the API key, check the
// Origin allowlist, check the per-IP rate limit, and accept the upgrade.
func (m *Manager) Handshake(w http.ResponseWriter, r *http.Request) {
	key := apiKeyFromRequest(r)
	if key == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	embed, err := m.embedCodes.ByAPIKey(r.Context(), key)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	origin := r.Header.Get("Origin")
	if !originAllowed(embed.AllowedOrigins, origin) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	if !m.limiterFor(clientIP(r)).Allow() {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("widget: upgrade failed: %v", err)
		return
	}

	_ = m.embedCodes.RecordUsage(r.Context(), embed.ID)

	sessionID := r.URL.Query().Get("session_id")
	c := &conn{ws: ws, embed: embed, sessionID: sessionID, idleTimeout: m.idleTimeout, mgr: m}
	m.register(c)
	defer m.unregister(c)
	defer c.ws.Close()
	m.flushMailbox(r.Context(), c)
	c.loop()
}

// originAllowed reports whether origin passes embed's allowlist. An empty
// allowlist means allow any origin, per §4.12 step 2.
func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == origin || a == "*" {
			return true
		}
	}
	return false
}

func (m *Manager) register(c *conn) {
	if c.sessionID == "" {
		return
	}
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	if m.sessions[c.sessionID] == nil {
		m.sessions[c.sessionID] = make(map[*conn]struct{})
	}
	m.sessions[c.sessionID][c] = struct{}{}
}

func (m *Manager) unregister(c *conn) {
	if c.sessionID == "" {
		return
	}
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	delete(m.sessions[c.sessionID], c)
	if len(m.sessions[c.sessionID]) == 0 {
		delete(m.sessions, c.sessionID)
	}
}

// broadcastToSession sends frame to every other connection sharing the
// same session id, for the "typing" notification in §4.12's message table.
func (m *Manager) broadcastToSession(sessionID string, exclude *conn, f Frame) {
	m.sessionsMu.Lock()
	peers := make([]*conn, 0, len(m.sessions[sessionID]))
	for c := range m.sessions[sessionID] {
		if c != exclude {
			peers = append(peers, c)
		}
	}
	m.sessionsMu.Unlock()

	for _, c := range peers {
		c.send(f)
	}
}

func (c *conn) send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

func (c *conn) sendError(message string) {
	data, _ := json.Marshal(map[string]string{"code": "error", "message": message})
	_ = c.send(Frame{Type: TypeError, Data: data, TS: time.Now().Unix()})
}

// sendClose writes a WebSocket close control frame with code and reason.
// Best-effort: the connection is torn down by the caller's deferred
// ws.Close() regardless of whether the peer sees this frame.
func (c *conn) sendClose(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// loop runs the single-threaded, cooperative per-connection message loop
// described in §4.12: frames are processed strictly in receive order, and
// every response to a chat_message is emitted before the next inbound
// frame is handled.
func (c *conn) loop() {
	c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			cancel() // propagate disconnect so any in-flight generation can stop cooperatively
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// No frame received for idle_timeout: close with
				// going_away, per §4.12's heartbeat/timeout rule.
				c.sendClose(CloseGoingAway, "idle timeout")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))

		if c.handleFrame(ctx, f) {
			return
		}
	}
}

// handleFrame dispatches one inbound frame and reports whether the
// connection should close.
func (c *conn) handleFrame(ctx context.Context, f Frame) (closeConn bool) {
	switch f.Type {
	case TypePing:
		_ = c.send(Frame{Type: TypePong, TS: time.Now().Unix()})

	case TypeHeartbeat:
		var body struct {
			ClientTS int64 `json:"client_ts"`
		}
		_ = json.Unmarshal(f.Data, &body)
		data, _ := json.Marshal(map[string]int64{"client_ts": body.ClientTS, "server_ts": time.Now().Unix()})
		_ = c.send(Frame{Type: TypeHeartbeat, Data: data, TS: time.Now().Unix()})

	case TypeTyping:
		c.mgr.broadcastToSession(c.sessionID, c, Frame{Type: TypeTyping, Data: f.Data, TS: time.Now().Unix()})

	case TypeChatMessage:
		c.handleChatMessage(ctx, f)

	case TypeClose:
		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(f.Data, &body)
		c.sendClose(CloseNormal, body.Reason)
		return true

	default:
		c.sendError("unknown or malformed message type")
	}
	return false
}

type chatMessagePayload struct {
	Content       string `json:"content"`
	SessionID     string `json:"session_id"`
	ResponseStyle string `json:"response_style"`
}

// handleChatMessage invokes the RAG orchestrator and streams the answer
// back as chat_chunk frames followed by a chat_complete frame carrying
// sources and confidence, per §4.12's message table. Exceptions are caught
// and surfaced as an error frame; the connection stays open.
func (c *conn) handleChatMessage(ctx context.Context, f Frame) {
	defer func() {
		if r := recover(); r != nil {
			c.sendError("internal error processing chat message")
		}
	}()

	var payload chatMessagePayload
	if err := json.Unmarshal(f.Data, &payload); err != nil || payload.Content == "" {
		c.sendError("malformed chat_message payload")
		return
	}

	sessionID := payload.SessionID
	if sessionID == "" {
		sessionID = c.sessionID
	}

	answer, err := c.mgr.orchestrator.Process(ctx, rag.Query{
		WorkspaceID:   c.embed.WorkspaceID,
		UserID:        database.SyntheticWidgetUser(c.embed.WorkspaceID),
		SessionID:     sessionID,
		Text:          payload.Content,
		ResponseStyle: domain.ResponseStyle(payload.ResponseStyle),
	})
	if err != nil {
		c.sendError(widgetErrorMessage(err))
		return
	}

	if c.sessionID == "" && answer.SessionID != "" {
		c.sessionID = answer.SessionID
		c.mgr.register(c)
	}

	c.streamAnswer(answer)
}

// streamAnswer emits the fully-computed answer text as a sequence of
// chat_chunk frames (the generator adapter is not itself streaming), then
// a chat_complete frame, matching the ordering contract of §4.12's
// streaming variant without requiring a token-streaming generator.
func (c *conn) streamAnswer(answer *rag.Answer) {
	text := answer.Answer
	size := c.mgr.chunkSize
	for start := 0; start < len(text); start += size {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		data, _ := json.Marshal(map[string]string{"text": text[start:end]})
		_ = c.send(Frame{Type: TypeChatChunk, Data: data, TS: time.Now().Unix()})
	}
	if len(text) == 0 {
		data, _ := json.Marshal(map[string]string{"text": ""})
		_ = c.send(Frame{Type: TypeChatChunk, Data: data, TS: time.Now().Unix()})
	}

	complete, _ := json.Marshal(map[string]interface{}{
		"answer":     answer.Answer,
		"sources":    answer.Sources,
		"confidence": answer.Confidence,
		"session_id": answer.SessionID,
	})
	completeFrame := Frame{Type: TypeChatComplete, Data: complete, TS: time.Now().Unix()}
	if err := c.send(completeFrame); err != nil {
		// Socket dropped mid-stream; queue the final answer so a reconnect
		// with the same session_id still sees it, per the widget
		// reconnection scenario.
		c.mgr.queueMailbox(c.sessionID, completeFrame)
	}
}

func widgetErrorMessage(err error) string {
	if domain.Is(err, domain.KindQuotaExceeded) {
		return "this workspace has reached its query limit"
	}
	return "unable to answer right now, please try again"
}
