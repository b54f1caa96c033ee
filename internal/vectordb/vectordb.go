// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import (
	"context"
	"fmt"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/logger"
)

// UpsertItem is one vector to write into a workspace's collection.
type UpsertItem struct {
	ChunkID  string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Match is a vector search hit.
type Match struct {
	ChunkID  string
	Score    float32
	Text     string
	Metadata map[string]string
}

// Filter restricts a query or delete to chunks matching all Equals pairs
// and, for each key in In, one of the listed values.
type Filter struct {
	Equals map[string]string
	In     map[string][]string
}

// DeleteSelector chooses which points Delete removes. Exactly one of
// ChunkIDs, DocumentID, or All should be set.
type DeleteSelector struct {
	ChunkIDs   []string
	DocumentID string
	All        bool
}

// Store is the Vector Store (C5): a per-workspace logical collection with
// idempotent upsert, filtered similarity query, and delete. Cross-tenant
// access is impossible by construction: every operation takes workspaceID
// and scopes the underlying collection to it.
type Store interface {
	Upsert(ctx context.Context, workspaceID string, items []UpsertItem) error
	Query(ctx context.Context, workspaceID string, queryVector []float32, topK int, filter *Filter) ([]Match, error)
	Delete(ctx context.Context, workspaceID string, sel DeleteSelector) error
}

// CollectionName returns the per-workspace collection name, per §6:
// "workspace_<workspace_id>".
func CollectionName(workspaceID string) string {
	return "workspace_" + workspaceID
}

// QdrantStore is a Qdrant-backed Store. One Qdrant collection is created
// lazily per workspace, named per CollectionName.
type QdrantStore struct {
	collectionsSvc qdrant.CollectionsClient
	pointsSvc      qdrant.PointsClient
	dimension      int
}

// NewQdrantStore constructs a Store from a dialed gRPC connection. dim is
// the service-wide embedding dimension recorded on every collection it
// creates.
func NewQdrantStore(conn *grpc.ClientConn, dim int) (*QdrantStore, error) {
	if conn == nil {
		return nil, domain.New(domain.KindInternal, "qdrant: gRPC connection is required")
	}
	return &QdrantStore{
		collectionsSvc: qdrant.NewCollectionsClient(conn),
		pointsSvc:      qdrant.NewPointsClient(conn),
		dimension:      dim,
	}, nil
}

func (q *QdrantStore) ensureCollection(ctx context.Context, name string) error {
	collections, err := q.collectionsSvc.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return domain.Wrap(domain.KindUnavailable, "list qdrant collections", err)
	}

	for _, coll := range collections.Collections {
		if coll.Name == name {
			return nil
		}
	}

	_, err = q.collectionsSvc.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(q.dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return domain.Wrap(domain.KindUnavailable, "create qdrant collection "+name, err)
	}
	logger.Printf("vectordb: created collection %s (dim=%d, distance=cosine)", name, q.dimension)
	return nil
}

func qdrantValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

// Upsert idempotently writes items into workspaceID's collection, keyed by
// ChunkID. Re-upserting the same chunk_id with identical content is a
// no-op in observable effect (last-writer-wins, safe because retries
// reproduce identical content).
func (q *QdrantStore) Upsert(ctx context.Context, workspaceID string, items []UpsertItem) error {
	if len(items) == 0 {
		return nil
	}
	collection := CollectionName(workspaceID)
	if err := q.ensureCollection(ctx, collection); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, item := range items {
		payload := map[string]*qdrant.Value{"text": qdrantValue(item.Text)}
		for k, v := range item.Metadata {
			payload[k] = qdrantValue(v)
		}
		points = append(points, &qdrant.PointStruct{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: item.ChunkID}},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: item.Vector}},
			},
			Payload: payload,
		})
	}

	if _, err := q.pointsSvc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	}); err != nil {
		return domain.Wrap(domain.KindUnavailable, "upsert points", err)
	}
	return nil
}

func buildFilter(f *Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	var must []*qdrant.Condition
	for k, v := range f.Equals {
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   k,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}},
				},
			},
		})
	}
	for k, values := range f.In {
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   k,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: values}}},
				},
			},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// Query performs a cosine-similarity search scoped to workspaceID's
// collection, applying filter if given.
func (q *QdrantStore) Query(ctx context.Context, workspaceID string, queryVector []float32, topK int, filter *Filter) ([]Match, error) {
	if len(queryVector) == 0 {
		return nil, domain.New(domain.KindValidation, "query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 10
	}
	collection := CollectionName(workspaceID)
	if err := q.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	result, err := q.pointsSvc.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         queryVector,
		Filter:         buildFilter(filter),
		Limit:          uint64(topK),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: false}},
	})
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "qdrant search", err)
	}

	matches := make([]Match, 0, len(result.Result))
	for _, sp := range result.Result {
		var chunkID string
		if sp.Id != nil {
			if u := sp.Id.GetUuid(); u != "" {
				chunkID = u
			} else {
				chunkID = fmt.Sprintf("%d", sp.Id.GetNum())
			}
		}

		metadata := make(map[string]string)
		text := ""
		for key, value := range sp.Payload {
			if s := value.GetStringValue(); s != "" {
				if key == "text" {
					text = s
					continue
				}
				metadata[key] = s
			}
		}

		matches = append(matches, Match{
			ChunkID:  chunkID,
			Score:    sp.Score,
			Text:     text,
			Metadata: metadata,
		})
	}
	return matches, nil
}

// Delete removes points from workspaceID's collection per sel.
func (q *QdrantStore) Delete(ctx context.Context, workspaceID string, sel DeleteSelector) error {
	collection := CollectionName(workspaceID)

	var selector *qdrant.PointsSelector
	switch {
	case sel.All:
		selector = &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: &qdrant.Filter{}},
		}
	case sel.DocumentID != "":
		selector = &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: buildFilter(&Filter{Equals: map[string]string{"document_id": sel.DocumentID}}),
			},
		}
	case len(sel.ChunkIDs) > 0:
		ids := make([]*qdrant.PointId, 0, len(sel.ChunkIDs))
		for _, id := range sel.ChunkIDs {
			ids = append(ids, &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}})
		}
		selector = &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{Points: &qdrant.PointsIdsList{Ids: ids}},
		}
	default:
		return nil
	}

	if _, err := q.pointsSvc.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         selector,
	}); err != nil {
		return domain.Wrap(domain.KindUnavailable, "qdrant delete", err)
	}
	return nil
}

var _ Store = (*QdrantStore)(nil)
