// Copyright (c) 2025 Northbound System
package ingest

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/northbound/ragcore/internal/chunk"
	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/embeddings"
	"github.com/northbound/ragcore/internal/queue"
	"github.com/northbound/ragcore/internal/storage"
	"github.com/northbound/ragcore/internal/vectordb"
)

// fakeQueue is an in-memory queue.Queue for pipeline tests.
type fakeQueue struct {
	delayed    []queue.Job
	deadLetter []queue.Job
}

func (q *fakeQueue) Enqueue(ctx context.Context, job queue.Job) error   { return nil }
func (q *fakeQueue) Dequeue(ctx context.Context) (queue.Job, error)     { return queue.Job{}, nil }
func (q *fakeQueue) Ack(ctx context.Context, job queue.Job) error       { return nil }
func (q *fakeQueue) ExtendLease(ctx context.Context, job queue.Job) error { return nil }
func (q *fakeQueue) EnqueueDelayed(ctx context.Context, job queue.Job, delay time.Duration) error {
	q.delayed = append(q.delayed, job)
	return nil
}
func (q *fakeQueue) DeadLetter(ctx context.Context, job queue.Job, reason string) error {
	q.deadLetter = append(q.deadLetter, job)
	return nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *database.DocumentStore, *fakeQueue) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "ingest_test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	workspaces := database.NewWorkspaceStore(db)
	documents := database.NewDocumentStore(db)
	chunks := database.NewChunkStore(db)
	events := database.NewIngestEventStore(db)

	ws, err := workspaces.Create(context.Background(), "test workspace", domain.PlanFree)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	stor, err := storage.NewFSAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("new fs adapter: %v", err)
	}
	key, err := stor.Put(context.Background(), ws.ID, []byte("Document Title\n\nThis is the body of the document."), "text/plain")
	if err != nil {
		t.Fatalf("put object: %v", err)
	}

	doc, err := documents.Create(context.Background(), ws.ID, "uploader-1", "notes.txt", "text/plain", key, 64)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	fq := &fakeQueue{}
	p := &Pipeline{
		Documents: documents,
		Chunks:    chunks,
		Events:    events,
		Storage:   stor,
		Chunker:   chunk.New(chunk.DefaultConfig()),
		Embedder:  embeddings.NewMockEmbedder(8),
		Vectors:   vectordb.NewMockStore(),
		Queue:     fq,
	}
	_ = doc
	singleWorkspaceID = ws.ID
	return p, documents, fq
}

func TestPipeline_ProcessMarksDocumentDone(t *testing.T) {
	p, documents, _ := newTestPipeline(t)
	docs, err := documents.ListByWorkspace(context.Background(), mustSingleWorkspace(t, documents))
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}

	payload := Payload{DocumentID: docs[0].ID, WorkspaceID: docs[0].WorkspaceID}
	raw, _ := json.Marshal(payload)
	if err := p.Handle(context.Background(), queue.Job{Type: jobTypeIngestDocument, Payload: raw}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got, err := documents.Get(context.Background(), docs[0].WorkspaceID, docs[0].ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Status != domain.DocumentDone {
		t.Errorf("expected document status done, got %s", got.Status)
	}

	chunks, err := p.Chunks.ListByDocument(context.Background(), docs[0].ID)
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(chunks) == 0 {
		t.Errorf("expected at least one chunk to be written")
	}
}

func TestPipeline_IdempotentOnAlreadyDoneDocument(t *testing.T) {
	p, documents, _ := newTestPipeline(t)
	ws := mustSingleWorkspace(t, documents)
	docs, _ := documents.ListByWorkspace(context.Background(), ws)
	doc := docs[0]

	if err := documents.SetStatus(context.Background(), doc.ID, domain.DocumentDone, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}

	payload := Payload{DocumentID: doc.ID, WorkspaceID: doc.WorkspaceID}
	raw, _ := json.Marshal(payload)
	if err := p.Handle(context.Background(), queue.Job{Type: jobTypeIngestDocument, Payload: raw}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	chunks, err := p.Chunks.ListByDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks written for an already-done document, got %d", len(chunks))
	}
}

func TestPipeline_DeadLettersAfterMaxAttempts(t *testing.T) {
	p, documents, fq := newTestPipeline(t)
	ws := mustSingleWorkspace(t, documents)
	docs, _ := documents.ListByWorkspace(context.Background(), ws)
	doc := docs[0]

	// Swap in a storage adapter whose Get always fails with a retryable
	// Unavailable error, forcing the attempt counter to the cap.
	p.Storage = storage.Adapter(&alwaysFailStorage{})
	p.MaxAttempts = 2

	payload := Payload{DocumentID: doc.ID, WorkspaceID: doc.WorkspaceID}
	raw, _ := json.Marshal(payload)

	job := queue.Job{Type: jobTypeIngestDocument, Payload: raw, Attempt: 1}
	if err := p.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(fq.deadLetter) != 1 {
		t.Fatalf("expected job to be dead-lettered, got %d dead-letter entries", len(fq.deadLetter))
	}

	got, err := documents.Get(context.Background(), doc.WorkspaceID, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Status != domain.DocumentFailed {
		t.Errorf("expected document status failed, got %s", got.Status)
	}
}

func TestPipeline_EmptyFileReachesDoneWithZeroChunks(t *testing.T) {
	p, documents, _ := newTestPipeline(t)
	ws := mustSingleWorkspace(t, documents)

	emptyKey, err := p.Storage.Put(context.Background(), ws, []byte(""), "text/plain")
	if err != nil {
		t.Fatalf("put empty object: %v", err)
	}
	doc, err := documents.Create(context.Background(), ws, "uploader-1", "empty.txt", "text/plain", emptyKey, 0)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	payload := Payload{DocumentID: doc.ID, WorkspaceID: ws}
	raw, _ := json.Marshal(payload)
	if err := p.Handle(context.Background(), queue.Job{Type: jobTypeIngestDocument, Payload: raw}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got, err := documents.Get(context.Background(), ws, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Status != domain.DocumentDone {
		t.Errorf("expected empty document to reach status done, got %s (%s)", got.Status, got.Error)
	}

	chunks, err := p.Chunks.ListByDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected zero chunks for an empty file, got %d", len(chunks))
	}
}

type alwaysFailStorage struct{}

func (s *alwaysFailStorage) Put(ctx context.Context, workspaceID string, data []byte, contentType string) (string, error) {
	return "", domain.New(domain.KindUnavailable, "storage unavailable")
}
func (s *alwaysFailStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, domain.New(domain.KindUnavailable, "storage unavailable")
}
func (s *alwaysFailStorage) Delete(ctx context.Context, key string) error { return nil }

func mustSingleWorkspace(t *testing.T, documents *database.DocumentStore) string {
	t.Helper()
	// newTestPipeline seeds exactly one workspace and records its id in
	// singleWorkspaceID; return that rather than threading an extra
	// return value through newTestPipeline.
	return singleWorkspaceID
}

var singleWorkspaceID string
