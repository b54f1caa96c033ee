// Copyright (c) 2025 Northbound System
package chunk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/northbound/ragcore/internal/domain"
)

// chunkIDNamespace is the fixed UUIDv5 namespace chunk ids are derived
// from, so re-chunking the same document on a retry reproduces the same
// ids instead of minting fresh ones.
var chunkIDNamespace = uuid.MustParse("2b6a6c0e-7e8f-4a2e-9e2a-2f6d7c1b9a4d")

// deterministicChunkID derives a stable chunk id from (document_id,
// chunk_index). Both the relational upsert
// (internal/database/chunk.go, keyed by document_id+chunk_index) and the
// vector store upsert (keyed by chunk_id) must collide on a retry that
// re-chunks the same document, per §4.6 step 5's orphan-overwrite rule and
// §8's upsert idempotence law. A random id per run would let the vector
// store accumulate the superseded run's points alongside the new ones.
func deterministicChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkIDNamespace, []byte(documentID+":"+strconv.Itoa(index))).String()
}

// Strategy selects the grouping algorithm used by Chunker.Chunk.
type Strategy string

const (
	StrategySemantic  Strategy = "semantic"
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
	StrategyFixed     Strategy = "fixed"
)

// Config is the Semantic Chunker's tunable size budget.
type Config struct {
	MaxSize  int
	Overlap  int
	Strategy Strategy
}

// DefaultConfig matches the teacher's original fixed-window defaults,
// generalized as the fallback for any strategy that doesn't set its own.
func DefaultConfig() Config {
	return Config{MaxSize: 1000, Overlap: 200, Strategy: StrategySemantic}
}

// Chunker groups ordered Text Blocks into Chunks respecting semantic
// boundaries and a size budget (C3).
type Chunker struct {
	cfg Config
}

// New creates a Chunker with the given configuration.
func New(cfg Config) *Chunker {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategySemantic
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits blocks into Chunks for documentID/workspaceID according to
// the configured strategy. Chunk indices are dense, starting at 0.
func (c *Chunker) Chunk(documentID, workspaceID string, blocks []domain.TextBlock) []domain.Chunk {
	if len(blocks) == 0 {
		return nil
	}

	var groups [][]domain.TextBlock
	switch c.cfg.Strategy {
	case StrategyParagraph:
		for _, b := range blocks {
			groups = append(groups, []domain.TextBlock{b})
		}
	case StrategyFixed:
		groups = c.chunkFixed(blocks)
	case StrategySentence:
		groups = c.chunkSentence(blocks)
	default: // semantic
		groups = c.chunkSemantic(blocks)
	}

	chunks := make([]domain.Chunk, 0, len(groups))
	for i, g := range groups {
		chunks = append(chunks, buildChunk(documentID, workspaceID, i, g))
	}
	return chunks
}

// chunkSemantic is the default strategy: accumulate blocks until adding the
// next one would exceed MaxSize, emit, then seed the next buffer with the
// last 1-2 blocks of the emitted one (the overlap).
func (c *Chunker) chunkSemantic(blocks []domain.TextBlock) [][]domain.TextBlock {
	var groups [][]domain.TextBlock
	var buf []domain.TextBlock
	size := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		groups = append(groups, buf)
		overlapStart := len(buf) - 2
		if overlapStart < 0 {
			overlapStart = 0
		}
		carry := append([]domain.TextBlock{}, buf[overlapStart:]...)
		buf = carry
		size = 0
		for _, b := range buf {
			size += len(b.Text)
		}
	}

	for _, b := range blocks {
		if size+len(b.Text) > c.cfg.MaxSize && len(buf) > 0 {
			flush()
		}
		buf = append(buf, b)
		size += len(b.Text)
	}
	if len(buf) > 0 {
		groups = append(groups, buf)
	}
	return groups
}

var sentenceBoundaryRe = regexp.MustCompile(`[.!?]\s+`)

// chunkSentence applies the same accumulate-and-overlap algorithm as
// chunkSemantic but over sentence tokens within each block, keeping the
// last 2 sentences as overlap. Each sentence becomes its own TextBlock
// carrying its source block's type, page, section and importance, so an
// emitted group is a list of sentence blocks that buildChunk aggregates
// the same way as for the other strategies.
func (c *Chunker) chunkSentence(blocks []domain.TextBlock) [][]domain.TextBlock {
	var sentences []domain.TextBlock
	for _, b := range blocks {
		parts := sentenceBoundaryRe.Split(b.Text, -1)
		for _, s := range parts {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			sentences = append(sentences, domain.TextBlock{
				Text:       s,
				Type:       b.Type,
				Page:       b.Page,
				Section:    b.Section,
				Importance: b.Importance,
			})
		}
	}
	if len(sentences) == 0 {
		return nil
	}

	var groups [][]domain.TextBlock
	var buf []domain.TextBlock
	size := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		groups = append(groups, buf)
		overlapStart := len(buf) - 2
		if overlapStart < 0 {
			overlapStart = 0
		}
		carry := append([]domain.TextBlock{}, buf[overlapStart:]...)
		buf = carry
		size = 0
		for _, s := range buf {
			size += len(s.Text)
		}
	}

	for _, s := range sentences {
		if size+len(s.Text) > c.cfg.MaxSize && len(buf) > 0 {
			flush()
		}
		buf = append(buf, s)
		size += len(s.Text)
	}
	if len(buf) > 0 {
		groups = append(groups, buf)
	}
	return groups
}

// chunkFixed produces character-bounded windows over the concatenation of
// all block text, re-emitting Overlap trailing characters at the start of
// the next window. This is the one strategy allowed to split a block.
func (c *Chunker) chunkFixed(blocks []domain.TextBlock) [][]domain.TextBlock {
	var full strings.Builder
	for i, b := range blocks {
		if i > 0 {
			full.WriteString("\n\n")
		}
		full.WriteString(b.Text)
	}
	text := full.String()
	if text == "" {
		return nil
	}

	representative := blocks[0]
	var groups [][]domain.TextBlock
	start := 0
	for start < len(text) {
		end := start + c.cfg.MaxSize
		if end > len(text) {
			end = len(text)
		}
		window := strings.TrimSpace(text[start:end])
		if window != "" {
			groups = append(groups, []domain.TextBlock{{
				Text:       window,
				Type:       representative.Type,
				Page:       representative.Page,
				Section:    representative.Section,
				Importance: representative.Importance,
			}})
		}
		if end >= len(text) {
			break
		}
		start = end - c.cfg.Overlap
		if start < 0 {
			start = 0
		}
	}
	return groups
}

func buildChunk(documentID, workspaceID string, index int, group []domain.TextBlock) domain.Chunk {
	var text strings.Builder
	meta := domain.ChunkMetadata{BlockCount: len(group)}
	sections := map[string]bool{}
	pages := map[int]bool{}
	types := map[domain.BlockType]bool{}
	var importanceSum float64

	for i, b := range group {
		if i > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(b.Text)
		importanceSum += b.Importance
		types[b.Type] = true
		if b.Section != "" {
			sections[b.Section] = true
		}
		if b.Page != nil {
			pages[*b.Page] = true
		}
	}

	merged := text.String()
	meta.TotalLength = len(merged)
	if len(group) > 0 {
		meta.MeanImportance = importanceSum / float64(len(group))
	}
	for t := range types {
		meta.BlockTypes = append(meta.BlockTypes, t)
	}
	for s := range sections {
		meta.Sections = append(meta.Sections, s)
	}
	for p := range pages {
		meta.Pages = append(meta.Pages, p)
	}

	return domain.Chunk{
		ID:          deterministicChunkID(documentID, index),
		DocumentID:  documentID,
		WorkspaceID: workspaceID,
		Index:       index,
		Text:        merged,
		Metadata:    meta,
	}
}
