// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package ingest implements the Ingestion Worker (C6): durably converting
// an uploaded Document into indexed Chunks by running the extract, chunk,
// embed, and upsert steps, with retry, backoff, and dead-lettering on
// failure.
package ingest

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/northbound/ragcore/internal/chunk"
	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/embeddings"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/parser"
	"github.com/northbound/ragcore/internal/queue"
	"github.com/northbound/ragcore/internal/storage"
	"github.com/northbound/ragcore/internal/vectordb"
)

const (
	jobTypeIngestDocument = "ingest_document"
	defaultMaxAttempts    = 5
	backoffBase           = time.Second
	backoffCap            = 300 * time.Second
	embedBatchSize        = 32
)

// Payload is the JSON body of an ingest_document job.
type Payload struct {
	DocumentID  string `json:"document_id"`
	WorkspaceID string `json:"workspace_id"`
}

// CacheInvalidator is notified after a successful or destructive ingest so
// retrieval results for the workspace can be dropped.
type CacheInvalidator interface {
	InvalidateWorkspace(ctx context.Context, workspaceID string)
}

// Pipeline runs the C2 (extract) through C5 (vector upsert) steps for one
// document and owns the queue's retry/backoff/dead-letter policy.
type Pipeline struct {
	Documents    *database.DocumentStore
	Chunks       *database.ChunkStore
	Events       *database.IngestEventStore
	Storage      storage.Adapter
	Chunker      *chunk.Chunker
	Embedder     embeddings.Embedder
	Vectors      vectordb.Store
	Queue        queue.Queue
	Cache        CacheInvalidator
	MaxAttempts  int
}

// Enqueue submits a fresh ingest job for documentID at attempt 0.
func (p *Pipeline) Enqueue(ctx context.Context, documentID, workspaceID string) error {
	payload, err := json.Marshal(Payload{DocumentID: documentID, WorkspaceID: workspaceID})
	if err != nil {
		return domain.Wrap(domain.KindInternal, "marshal ingest payload", err)
	}
	return p.Queue.Enqueue(ctx, queue.Job{
		Type:      jobTypeIngestDocument,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
}

// Handle is the queue.HandlerFunc the worker pool invokes per job.
func (p *Pipeline) Handle(ctx context.Context, job queue.Job) error {
	if job.Type != jobTypeIngestDocument {
		return nil
	}
	var payload Payload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		logger.Errorf("ingest: malformed job payload, dropping: %v", err)
		return nil
	}

	err := p.process(ctx, payload)
	if err == nil {
		return nil
	}

	p.logEvent(ctx, payload.DocumentID, "attempt_failed", err.Error())

	if domain.Is(err, domain.KindCorrupted) || domain.Is(err, domain.KindValidation) {
		p.fail(ctx, payload, job, err)
		return nil
	}

	attempts := job.Attempt + 1
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if attempts >= maxAttempts {
		p.fail(ctx, payload, job, err)
		return nil
	}

	delay := backoffDelay(attempts)
	next := job
	next.Attempt = attempts
	if qerr := p.Queue.EnqueueDelayed(ctx, next, delay); qerr != nil {
		logger.Errorf("ingest: failed to schedule retry for document %s: %v", payload.DocumentID, qerr)
	}
	p.logEvent(ctx, payload.DocumentID, "retry_scheduled", err.Error())
	return nil
}

func (p *Pipeline) fail(ctx context.Context, payload Payload, job queue.Job, cause error) {
	if err := p.Documents.SetStatus(ctx, payload.DocumentID, domain.DocumentFailed, cause.Error()); err != nil {
		logger.Errorf("ingest: failed to mark document %s failed: %v", payload.DocumentID, err)
	}
	if err := p.Queue.DeadLetter(ctx, job, cause.Error()); err != nil {
		logger.Errorf("ingest: failed to dead-letter job for document %s: %v", payload.DocumentID, err)
	}
	p.logEvent(ctx, payload.DocumentID, "dead_lettered", cause.Error())
}

func (p *Pipeline) logEvent(ctx context.Context, documentID, eventType, details string) {
	if p.Events == nil {
		return
	}
	if err := p.Events.Log(ctx, documentID, eventType, details); err != nil {
		logger.Errorf("ingest: failed to log event: %v", err)
	}
}

// process runs the processing contract from §4.6 steps 1-6 for one
// document. Every step is safe to re-run: step 1 checks document status
// for idempotency, and chunk upsert is keyed by (document_id, chunk_index).
func (p *Pipeline) process(ctx context.Context, payload Payload) error {
	doc, err := p.Documents.Get(ctx, payload.WorkspaceID, payload.DocumentID)
	if err != nil {
		return err
	}
	if doc.Status != domain.DocumentUploaded && doc.Status != domain.DocumentProcessing {
		return nil
	}

	if err := p.Documents.SetStatus(ctx, doc.ID, domain.DocumentProcessing, ""); err != nil {
		return domain.Wrap(domain.KindInternal, "set document processing", err)
	}

	raw, err := p.Storage.Get(ctx, doc.StorageKey)
	if err != nil {
		return domain.Wrap(domain.KindUnavailable, "fetch document bytes", err)
	}

	blocks, err := parser.Extract(raw, doc.Filename)
	if err != nil {
		return err // already a *domain.Error, typically KindCorrupted or KindValidation
	}

	chunks := p.Chunker.Chunk(doc.ID, doc.WorkspaceID, blocks)
	if len(chunks) > 0 {
		if err := p.embedAndUpsert(ctx, chunks); err != nil {
			return err
		}
	}

	if err := p.Documents.SetStatus(ctx, doc.ID, domain.DocumentDone, ""); err != nil {
		return domain.Wrap(domain.KindInternal, "set document done", err)
	}
	if p.Cache != nil {
		p.Cache.InvalidateWorkspace(ctx, doc.WorkspaceID)
	}
	return nil
}

// embedAndUpsert runs C4 in batches then writes each chunk through the
// ChunkStore relational upsert and C5's vector upsert, per §4.6 step 5.
func (p *Pipeline) embedAndUpsert(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := p.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return domain.Wrap(domain.KindUnavailable, "embed chunk batch", err)
		}

		items := make([]vectordb.UpsertItem, len(batch))
		for i, c := range batch {
			c.Embedding = vectors[i]
			if err := p.Chunks.Upsert(ctx, c); err != nil {
				return err
			}
			items[i] = vectordb.UpsertItem{
				ChunkID: c.ID,
				Vector:  vectors[i],
				Text:    c.Text,
				Metadata: map[string]string{
					"document_id": c.DocumentID,
				},
			}
		}
		if err := p.Vectors.Upsert(ctx, chunks[0].WorkspaceID, items); err != nil {
			return domain.Wrap(domain.KindUnavailable, "upsert chunk vectors", err)
		}
	}
	return nil
}

// backoffDelay computes min(base * 2^attempt + jitter, cap), per §4.6.
func backoffDelay(attempt int) time.Duration {
	exp := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(backoffBase) * exp)
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	delay += jitter
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay
}
