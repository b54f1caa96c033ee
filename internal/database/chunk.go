// Copyright (c) 2025 Northbound System
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/northbound/ragcore/internal/domain"
)

// ChunkStore persists Chunk rows and their FTS5 lexical shadow table.
type ChunkStore struct {
	db *sql.DB
}

// NewChunkStore wraps db.
func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func joinTypes(ts []domain.BlockType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// Upsert writes a Chunk, idempotent on (document_id, chunk_index) per
// §4.6 step 5: a retry that re-produces an identical chunk overwrites the
// prior row safely. It also mirrors the chunk text into the FTS5 index
// used by lexical search.
func (s *ChunkStore) Upsert(ctx context.Context, c domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "begin chunk upsert", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chunks (id, document_id, workspace_id, chunk_index, text, block_count, total_length, mean_importance, block_types, sections, pages)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id, chunk_index) DO UPDATE SET
			id = excluded.id, text = excluded.text, block_count = excluded.block_count,
			total_length = excluded.total_length, mean_importance = excluded.mean_importance,
			block_types = excluded.block_types, sections = excluded.sections, pages = excluded.pages`,
		c.ID, c.DocumentID, c.WorkspaceID, c.Index, c.Text,
		c.Metadata.BlockCount, c.Metadata.TotalLength, c.Metadata.MeanImportance,
		joinTypes(c.Metadata.BlockTypes), strings.Join(c.Metadata.Sections, ","), joinInts(c.Metadata.Pages),
	)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "upsert chunk", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts WHERE chunk_id = ?", c.ID); err != nil {
		return domain.Wrap(domain.KindInternal, "clear chunk fts row", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO chunks_fts (chunk_id, workspace_id, document_id, text) VALUES (?, ?, ?, ?)",
		c.ID, c.WorkspaceID, c.DocumentID, c.Text,
	); err != nil {
		return domain.Wrap(domain.KindInternal, "index chunk fts row", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Wrap(domain.KindInternal, "commit chunk upsert", err)
	}
	return nil
}

// DeleteByDocument removes all chunks (and their FTS rows) for documentID.
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "begin chunk delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts WHERE document_id = ?", documentID); err != nil {
		return domain.Wrap(domain.KindInternal, "delete chunk fts rows", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return domain.Wrap(domain.KindInternal, "delete chunks", err)
	}
	return tx.Commit()
}

// ListByDocument returns chunks for documentID ordered by index.
func (s *ChunkStore) ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, workspace_id, chunk_index, text FROM chunks WHERE document_id = ? ORDER BY chunk_index`,
		documentID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "list chunks", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.WorkspaceID, &c.Index, &c.Text); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "scan chunk", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// LexicalHit is one BM25-ranked lexical search result.
type LexicalHit struct {
	ChunkID    string
	DocumentID string
	Text       string
	Score      float64 // higher is better (negated bm25)
}

// LexicalSearch runs a BM25-ranked FTS5 query scoped to workspaceID. query
// is escaped into an FTS5 MATCH expression token-by-token so punctuation in
// user input can't break the query syntax.
func (s *ChunkStore) LexicalSearch(ctx context.Context, workspaceID, query string, topK int) ([]LexicalHit, error) {
	if topK <= 0 {
		topK = 20
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, document_id, text, bm25(chunks_fts) AS rank
		 FROM chunks_fts
		 WHERE chunks_fts MATCH ? AND workspace_id = ?
		 ORDER BY rank LIMIT ?`,
		fmt.Sprintf("text: %s", match), workspaceID, topK,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "lexical search", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		var bm25 float64
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Text, &bm25); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "scan lexical hit", err)
		}
		h.Score = -bm25 // bm25() is smaller-is-better; invert so higher is better
		hits = append(hits, h)
	}
	return hits, nil
}

// ftsQuery turns free text into a safe FTS5 MATCH expression: each
// alphanumeric token becomes a quoted phrase token ORed together.
func ftsQuery(text string) string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
	})
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, "") + `"`
	}
	return strings.Join(quoted, " OR ")
}
