// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package retrieval implements the Retrieval Engine (C7): dense, lexical,
// hybrid, and reranked search over a workspace's chunks, with a
// Redis-backed result cache.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/embeddings"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/vectordb"
)

// Mode selects which candidate sources feed a search.
type Mode string

const (
	ModeVector  Mode = "vector"
	ModeLexical Mode = "lexical"
	ModeHybrid  Mode = "hybrid"
	ModeRerank  Mode = "rerank"
)

// Reranker rescores (query, chunk text) pairs, higher is more relevant.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Result is one retrieved chunk, scored and attributed to a search method.
type Result struct {
	ChunkID    string
	DocumentID string
	Text       string
	Score      float64
	Method     domain.SearchMethod
}

// Request parameterizes a Search call.
type Request struct {
	WorkspaceID       string
	Query             string
	Mode              Mode
	TopK              int
	SimilarityThresh  float64
	DocumentIDs       []string
	RerankCandidates  int
	RerankTopK        int
}

// Engine ties together dense search, lexical search, optional reranking,
// and result caching.
type Engine struct {
	vectors  vectordb.Store
	chunks   *database.ChunkStore
	embedder embeddings.Embedder
	reranker Reranker
	cache    *redis.Client
	cacheTTL time.Duration
	alpha    float64
}

// Config carries Engine construction parameters.
type Config struct {
	Vectors  vectordb.Store
	Chunks   *database.ChunkStore
	Embedder embeddings.Embedder
	Reranker Reranker // optional; rerank mode degrades to hybrid if nil
	Cache    *redis.Client
	CacheTTL time.Duration
	Alpha    float64 // hybrid fusion weight, default 0.6
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	alpha := cfg.Alpha
	if alpha == 0 {
		alpha = 0.6
	}
	return &Engine{
		vectors:  cfg.Vectors,
		chunks:   cfg.Chunks,
		embedder: cfg.Embedder,
		reranker: cfg.Reranker,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		alpha:    alpha,
	}
}

const (
	defaultDenseK   = 20
	defaultLexK     = 20
	defaultTopK     = 10
	defaultRerankN  = 20
	defaultRerankK  = 5
)

// Search executes req and returns ranked Results, using the cache when
// available.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}

	key := cacheKey(req)
	if e.cache != nil {
		if cached, ok := e.readCache(ctx, key); ok {
			return cached, nil
		}
	}

	results, err := e.search(ctx, req)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.writeCache(ctx, key, results)
	}
	return results, nil
}

func (e *Engine) search(ctx context.Context, req Request) ([]Result, error) {
	switch req.Mode {
	case ModeVector:
		return e.denseSearch(ctx, req, req.TopK)
	case ModeLexical:
		return e.lexicalSearch(ctx, req, req.TopK)
	case ModeRerank:
		return e.rerankSearch(ctx, req)
	default:
		return e.hybridSearch(ctx, req, req.TopK)
	}
}

func (e *Engine) denseSearch(ctx context.Context, req Request, topK int) ([]Result, error) {
	qVec, err := e.embedder.EmbedText(ctx, req.Query)
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "embed query", err)
	}
	filter := documentFilter(req.DocumentIDs)
	matches, err := e.vectors.Query(ctx, req.WorkspaceID, qVec, topK, filter)
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "dense search", err)
	}
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		score := float64(m.Score)
		if score < req.SimilarityThresh {
			continue
		}
		results = append(results, Result{
			ChunkID:    m.ChunkID,
			DocumentID: m.Metadata["document_id"],
			Text:       m.Text,
			Score:      score,
			Method:     domain.SearchVector,
		})
	}
	return results, nil
}

func (e *Engine) lexicalSearch(ctx context.Context, req Request, topK int) ([]Result, error) {
	hits, err := e.chunks.LexicalSearch(ctx, req.WorkspaceID, req.Query, topK)
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "lexical search", err)
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if len(req.DocumentIDs) > 0 && !contains(req.DocumentIDs, h.DocumentID) {
			continue
		}
		results = append(results, Result{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Text:       h.Text,
			Score:      h.Score,
			Method:     domain.SearchLexical,
		})
	}
	return results, nil
}

// hybridSearch fuses dense and lexical candidates per §4.7's weighted,
// min-max-normalized scheme. A failure on one side degrades to the other
// rather than failing the whole request.
func (e *Engine) hybridSearch(ctx context.Context, req Request, topK int) ([]Result, error) {
	dense, denseErr := e.denseSearch(ctx, req, defaultDenseK)
	lex, lexErr := e.lexicalSearch(ctx, req, defaultLexK)

	if denseErr != nil && lexErr != nil {
		return nil, domain.New(domain.KindUnavailable, "both dense and lexical search failed")
	}
	if denseErr != nil {
		logger.Printf("retrieval: dense search degraded, falling back to lexical: %v", denseErr)
		return topResults(lex, topK), nil
	}
	if lexErr != nil {
		logger.Printf("retrieval: lexical search degraded, falling back to dense: %v", lexErr)
		return topResults(dense, topK), nil
	}

	denseNorm := normalize(dense)
	lexNorm := normalize(lex)

	fused := make(map[string]*Result)
	for i, r := range dense {
		c := r
		c.Score = e.alpha * denseNorm[i]
		c.Method = domain.SearchHybrid
		fused[r.ChunkID] = &c
	}
	for i, r := range lex {
		if existing, ok := fused[r.ChunkID]; ok {
			existing.Score += (1 - e.alpha) * lexNorm[i]
			if existing.Text == "" {
				existing.Text = r.Text
			}
		} else {
			c := r
			c.Score = (1 - e.alpha) * lexNorm[i]
			c.Method = domain.SearchHybrid
			fused[r.ChunkID] = &c
		}
	}

	var out []Result
	for _, r := range fused {
		if r.Score < req.SimilarityThresh {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return topResults(out, topK), nil
}

func (e *Engine) rerankSearch(ctx context.Context, req Request) ([]Result, error) {
	rerankCandidates := req.RerankCandidates
	if rerankCandidates <= 0 {
		rerankCandidates = defaultRerankN
	}
	rerankTopK := req.RerankTopK
	if rerankTopK <= 0 {
		rerankTopK = defaultRerankK
	}

	candidates, err := e.hybridSearch(ctx, req, rerankCandidates)
	if err != nil {
		return nil, err
	}
	if e.reranker == nil || len(candidates) == 0 {
		return topResults(candidates, rerankTopK), nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	scores, err := e.reranker.Score(ctx, req.Query, texts)
	if err != nil {
		logger.Printf("retrieval: rerank failed, returning hybrid order: %v", err)
		return topResults(candidates, rerankTopK), nil
	}

	type scored struct {
		result Result
		hybrid float64
		cross  float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{result: c, hybrid: c.Score, cross: scores[i]}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].cross != ranked[j].cross {
			return ranked[i].cross > ranked[j].cross
		}
		if ranked[i].hybrid != ranked[j].hybrid {
			return ranked[i].hybrid > ranked[j].hybrid
		}
		return ranked[i].result.ChunkID < ranked[j].result.ChunkID
	})

	out := make([]Result, 0, rerankTopK)
	for i, r := range ranked {
		if i >= rerankTopK {
			break
		}
		r.result.Score = r.cross
		out = append(out, r.result)
	}
	return out, nil
}

func topResults(results []Result, topK int) []Result {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}

func normalize(results []Result) []float64 {
	out := make([]float64, len(results))
	if len(results) == 0 {
		return out
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	span := max - min
	for i, r := range results {
		if span == 0 {
			out[i] = 1
			continue
		}
		out[i] = (r.Score - min) / span
	}
	return out
}

func documentFilter(documentIDs []string) *vectordb.Filter {
	if len(documentIDs) == 0 {
		return nil
	}
	return &vectordb.Filter{In: map[string][]string{"document_id": documentIDs}}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// InvalidateWorkspace drops every cached result for workspaceID. Its only
// caller is the ingest pipeline, after a document finishes processing;
// no delete path calls it.
func (e *Engine) InvalidateWorkspace(ctx context.Context, workspaceID string) {
	if e.cache == nil {
		return
	}
	pattern := "retrieval:" + workspaceID + ":*"
	iter := e.cache.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := e.cache.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Printf("retrieval: cache invalidation delete failed: %v", err)
		}
	}
}

func cacheKey(req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%f|%v", req.WorkspaceID, req.Query, req.TopK, req.Mode, req.SimilarityThresh, req.DocumentIDs)
	return "retrieval:" + req.WorkspaceID + ":" + hex.EncodeToString(h.Sum(nil))
}

func (e *Engine) readCache(ctx context.Context, key string) ([]Result, bool) {
	raw, err := e.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var results []Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (e *Engine) writeCache(ctx context.Context, key string, results []Result) {
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.cacheTTL).Err(); err != nil {
		logger.Printf("retrieval: cache write failed: %v", err)
	}
}
