// Copyright (c) 2025 Northbound System
package retrieval

import (
	"testing"
)

func TestNormalize_MinMaxScaling(t *testing.T) {
	results := []Result{{Score: 2}, {Score: 6}, {Score: 4}}
	norm := normalize(results)
	if len(norm) != 3 {
		t.Fatalf("expected 3 normalized scores, got %d", len(norm))
	}
	if norm[0] != 0 {
		t.Errorf("expected the minimum score to normalize to 0, got %v", norm[0])
	}
	if norm[1] != 1 {
		t.Errorf("expected the maximum score to normalize to 1, got %v", norm[1])
	}
	if norm[2] != 0.5 {
		t.Errorf("expected the midpoint score to normalize to 0.5, got %v", norm[2])
	}
}

func TestNormalize_ZeroSpanYieldsOnes(t *testing.T) {
	results := []Result{{Score: 3}, {Score: 3}, {Score: 3}}
	norm := normalize(results)
	for i, v := range norm {
		if v != 1 {
			t.Errorf("result %d: expected uniform scores to normalize to 1, got %v", i, v)
		}
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	if got := normalize(nil); len(got) != 0 {
		t.Errorf("expected empty output for empty input, got %v", got)
	}
}

func TestTopResults_TruncatesToK(t *testing.T) {
	results := []Result{{ChunkID: "a"}, {ChunkID: "b"}, {ChunkID: "c"}}
	got := topResults(results, 2)
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	if got[0].ChunkID != "a" || got[1].ChunkID != "b" {
		t.Errorf("expected the first 2 results preserved in order, got %v", got)
	}
}

func TestTopResults_ShorterThanKReturnsAll(t *testing.T) {
	results := []Result{{ChunkID: "a"}}
	got := topResults(results, 5)
	if len(got) != 1 {
		t.Errorf("expected all results returned when fewer than k, got %d", len(got))
	}
}

func TestDocumentFilter_EmptyIsNil(t *testing.T) {
	if f := documentFilter(nil); f != nil {
		t.Errorf("expected nil filter for no document ids, got %v", f)
	}
}

func TestDocumentFilter_BuildsInClause(t *testing.T) {
	f := documentFilter([]string{"doc-1", "doc-2"})
	if f == nil {
		t.Fatalf("expected a non-nil filter")
	}
	if len(f.In["document_id"]) != 2 {
		t.Errorf("expected 2 document ids in the filter, got %v", f.In["document_id"])
	}
}

func TestContains(t *testing.T) {
	xs := []string{"a", "b", "c"}
	if !contains(xs, "b") {
		t.Errorf("expected contains to find an existing element")
	}
	if contains(xs, "z") {
		t.Errorf("expected contains to reject a missing element")
	}
}

func TestCacheKey_DeterministicAndDiscriminating(t *testing.T) {
	r1 := Request{WorkspaceID: "ws-1", Query: "hello", TopK: 5, Mode: ModeHybrid}
	r2 := Request{WorkspaceID: "ws-1", Query: "hello", TopK: 5, Mode: ModeHybrid}
	r3 := Request{WorkspaceID: "ws-1", Query: "goodbye", TopK: 5, Mode: ModeHybrid}

	if cacheKey(r1) != cacheKey(r2) {
		t.Errorf("expected identical requests to produce identical cache keys")
	}
	if cacheKey(r1) == cacheKey(r3) {
		t.Errorf("expected distinct queries to produce distinct cache keys")
	}
	if cacheKey(r1)[:len("retrieval:ws-1:")] != "retrieval:ws-1:" {
		t.Errorf("expected the cache key to be prefixed by the workspace scope, got %q", cacheKey(r1))
	}
}
