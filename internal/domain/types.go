// Copyright (c) 2025 Northbound System
package domain

import "time"

// PlanTier is a Subscription's billing tier.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanStarter    PlanTier = "starter"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
	PlanWhiteLabel PlanTier = "white_label"
)

// DefaultMonthlyQuota returns the seed quota for a plan tier, or nil for
// unlimited. The Subscription row is the authoritative source; these are
// only used when seeding a new workspace.
func DefaultMonthlyQuota(tier PlanTier) *int {
	q := func(n int) *int { return &n }
	switch tier {
	case PlanFree:
		return q(100)
	case PlanStarter:
		return q(1000)
	case PlanPro:
		return q(10000)
	case PlanEnterprise:
		return q(100000)
	case PlanWhiteLabel:
		return nil // unlimited
	default:
		return q(100)
	}
}

// DefaultDocumentLimit returns the seed per-workspace document count limit
// for a plan tier, or nil for unlimited.
func DefaultDocumentLimit(tier PlanTier) *int {
	n := func(v int) *int { return &v }
	switch tier {
	case PlanFree:
		return n(20)
	case PlanStarter:
		return n(200)
	case PlanPro:
		return n(2000)
	case PlanEnterprise, PlanWhiteLabel:
		return nil // unlimited
	default:
		return n(20)
	}
}

// Workspace is the tenant root. Every other domain entity references
// exactly one Workspace.
type Workspace struct {
	ID        string
	Name      string
	PlanTier  PlanTier
	Active    bool
	CreatedAt time.Time
}

// User is an identity within a workspace.
type User struct {
	ID          string
	WorkspaceID string
	Email       string
	PasswordSHA string // opaque credential hash; storage/verification is out of scope (§1)
	Active      bool
}

// SubscriptionStatus is the billing status of a Subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionTrialing  SubscriptionStatus = "trialing"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCanceled  SubscriptionStatus = "canceled"
	SubscriptionUnpaid    SubscriptionStatus = "unpaid"
)

// Subscription is the billing and quota state for a Workspace. There is
// exactly one per Workspace.
type Subscription struct {
	WorkspaceID       string
	Tier              PlanTier
	Status            SubscriptionStatus
	PeriodStart       time.Time
	PeriodEnd         time.Time
	MonthlyQuota      *int // nil = unlimited
	QueriesThisPeriod int
}

// DocumentStatus is the ingestion lifecycle state of a Document.
type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "uploaded"
	DocumentProcessing DocumentStatus = "processing"
	DocumentDone       DocumentStatus = "done"
	DocumentFailed     DocumentStatus = "failed"
	DocumentDeleted    DocumentStatus = "deleted"
)

// Document is an uploaded source file.
type Document struct {
	ID          string
	WorkspaceID string
	UploaderID  string
	Filename    string
	ContentType string
	ByteSize    int64
	StorageKey  string
	Status      DocumentStatus
	Error       string
	UploadedAt  time.Time
}

// BlockType classifies a Text Block extracted from a document (C2).
type BlockType string

const (
	BlockTitle     BlockType = "title"
	BlockParagraph BlockType = "paragraph"
	BlockList      BlockType = "list"
	BlockTable     BlockType = "table"
	BlockCode      BlockType = "code"
	BlockSummary   BlockType = "summary"
	BlockTableRow  BlockType = "table_row"
)

// TextBlock is one structural unit extracted from a source document by C2,
// before chunking groups several of them together.
type TextBlock struct {
	Text       string
	Type       BlockType
	Page       *int
	Section    string
	Importance float64 // [0,1]
}

// ChunkMetadata is the aggregated, per-chunk metadata produced by C3.
type ChunkMetadata struct {
	BlockCount      int
	TotalLength     int
	MeanImportance  float64
	BlockTypes      []BlockType
	Sections        []string
	Pages           []int
}

// Chunk is an indexable unit of a Document.
type Chunk struct {
	ID          string
	DocumentID  string
	WorkspaceID string
	Index       int
	Text        string
	Metadata    ChunkMetadata
	Embedding   []float32
}

// ChatRole is who spoke a ChatMessage turn.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// Confidence is the orchestrator's self-reported confidence in an answer.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ChatSession is a conversation between a user (or widget visitor) and the
// RAG orchestrator.
type ChatSession struct {
	ID           string
	WorkspaceID  string
	UserID       string
	SessionKey   string
	Label        string
	Active       bool
	LastActivity time.Time
	EndedAt      *time.Time
}

// Source is one citation backing an assistant ChatMessage.
type Source struct {
	ChunkID      string
	DocumentID   string
	Score        float64
	SearchMethod string
}

// ChatMessage is one turn in a ChatSession.
type ChatMessage struct {
	ID             string
	SessionID      string
	Role           ChatRole
	Content        string
	Model          string
	ResponseTimeMS *int
	TokenCount     *int
	Sources        []Source
	Confidence     Confidence
	Flagged        bool
	FlagReason     string
	CreatedAt      time.Time
}

// WidgetConfig is an EmbedCode's default widget appearance/behavior.
type WidgetConfig struct {
	Theme            string
	WelcomeMessages  []string
	Placeholder      string
	ShowSources      bool
}

// EmbedCode mints a widget credential bound to a workspace.
type EmbedCode struct {
	ID              string
	WorkspaceID     string
	IssuerUserID    string
	Name            string
	APIKey          string
	Config          WidgetConfig
	AllowedOrigins  []string
	Active          bool
	UsageCount      int64
	LastUsedAt      *time.Time
}

// IngestJob is a durable ingestion work item.
type IngestJob struct {
	ID           string
	DocumentID   string
	WorkspaceID  string
	Priority     int
	Attempt      int
	NextVisibleAt time.Time
	EnqueuedAt   time.Time
	LastError    string
}

// ResponseStyle selects the prompt modifier used by the RAG orchestrator.
type ResponseStyle string

const (
	StyleConversational ResponseStyle = "conversational"
	StyleTechnical       ResponseStyle = "technical"
	StyleSummarized      ResponseStyle = "summarized"
	StyleDetailed        ResponseStyle = "detailed"
	StyleStepByStep      ResponseStyle = "step_by_step"
)

// SearchMethod selects the retrieval mode used by C7.
type SearchMethod string

const (
	SearchVector  SearchMethod = "vector"
	SearchLexical SearchMethod = "lexical"
	SearchHybrid  SearchMethod = "hybrid"
	SearchRerank  SearchMethod = "rerank"
)
