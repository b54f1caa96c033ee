// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/northbound/ragcore/internal/config"
)

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{RedisAddr: "127.0.0.1:6379"}
	client, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	queueKey := "test:queue:" + time.Now().Format("20060102150405")
	q, err := NewRedisQueue(client, queueKey)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}
	defer func() {
		client.Del(ctx, queueKey, queueKey+":delayed", queueKey+":dead", queueKey+":processing", queueKey+":leases")
	}()

	job := Job{
		Type:      "ingest_document",
		Payload:   []byte(`{"document_id": "doc-1"}`),
		CreatedAt: time.Now(),
	}

	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	dequeueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dequeued, err := q.Dequeue(dequeueCtx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	if dequeued.Type != job.Type {
		t.Errorf("Expected job type %s, got %s", job.Type, dequeued.Type)
	}

	var expectedPayload, actualPayload map[string]interface{}
	if err := json.Unmarshal(job.Payload, &expectedPayload); err != nil {
		t.Fatalf("Failed to unmarshal expected payload: %v", err)
	}
	if err := json.Unmarshal(dequeued.Payload, &actualPayload); err != nil {
		t.Fatalf("Failed to unmarshal actual payload: %v", err)
	}
	expectedJSON, _ := json.Marshal(expectedPayload)
	actualJSON, _ := json.Marshal(actualPayload)
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("Expected payload %s, got %s", string(expectedJSON), string(actualJSON))
	}
}

func TestRedisQueue_MultipleJobs(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{RedisAddr: "127.0.0.1:6379"}
	client, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	queueKey := "test:queue:multi:" + time.Now().Format("20060102150405")
	q, err := NewRedisQueue(client, queueKey)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}
	defer func() {
		client.Del(ctx, queueKey, queueKey+":delayed", queueKey+":dead", queueKey+":processing", queueKey+":leases")
	}()

	numJobs := 5
	for i := 0; i < numJobs; i++ {
		job := Job{
			Type:      "ingest_document",
			Payload:   []byte(`{"index": ` + strconv.Itoa(i) + `}`),
			CreatedAt: time.Now(),
		}
		if err := q.Enqueue(ctx, job); err != nil {
			t.Fatalf("Enqueue failed for job %d: %v", i, err)
		}
	}

	dequeueCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for i := 0; i < numJobs; i++ {
		dequeued, err := q.Dequeue(dequeueCtx)
		if err != nil {
			t.Fatalf("Dequeue failed for job %d: %v", i, err)
		}
		if dequeued.Type != "ingest_document" {
			t.Errorf("Expected job type ingest_document, got %s", dequeued.Type)
		}
	}
}

func TestRedisQueue_ContextCancellation(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{RedisAddr: "127.0.0.1:6379"}
	client, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	queueKey := "test:queue:cancel:" + time.Now().Format("20060102150405")
	q, err := NewRedisQueue(client, queueKey)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}
	defer func() {
		client.Del(ctx, queueKey, queueKey+":delayed", queueKey+":dead", queueKey+":processing", queueKey+":leases")
	}()

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	_, err = q.Dequeue(cancelCtx)
	if err == nil {
		t.Error("Expected error on cancelled context, got nil")
	}
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRedisQueue_DelayedRequeuePromotes(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{RedisAddr: "127.0.0.1:6379"}
	client, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	queueKey := "test:queue:delayed:" + time.Now().Format("20060102150405")
	q, err := NewRedisQueue(client, queueKey)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}
	defer func() {
		client.Del(ctx, queueKey, queueKey+":delayed", queueKey+":dead", queueKey+":processing", queueKey+":leases")
	}()

	job := Job{Type: "ingest_document", Payload: []byte(`{}`), Attempt: 1}
	if err := q.EnqueueDelayed(ctx, job, 10*time.Millisecond); err != nil {
		t.Fatalf("EnqueueDelayed failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	promoted, err := q.PromoteDelayed(ctx)
	if err != nil {
		t.Fatalf("PromoteDelayed failed: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected 1 job promoted, got %d", promoted)
	}

	dequeueCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	dequeued, err := q.Dequeue(dequeueCtx)
	if err != nil {
		t.Fatalf("Dequeue after promote failed: %v", err)
	}
	if dequeued.Attempt != 1 {
		t.Errorf("expected promoted job to retain attempt=1, got %d", dequeued.Attempt)
	}
}

func TestRedisQueue_AckRemovesProcessingEntry(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{RedisAddr: "127.0.0.1:6379"}
	client, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	queueKey := "test:queue:ack:" + time.Now().Format("20060102150405")
	q, err := NewRedisQueue(client, queueKey)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}
	defer func() {
		client.Del(ctx, queueKey, queueKey+":delayed", queueKey+":dead", queueKey+":processing", queueKey+":leases")
	}()

	if err := q.Enqueue(ctx, Job{Type: "ingest_document", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	dequeueCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	job, err := q.Dequeue(dequeueCtx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	if n, err := client.LLen(ctx, q.processingKey()).Result(); err != nil || n != 1 {
		t.Fatalf("expected 1 job on processing list before ack, got n=%d err=%v", n, err)
	}
	if n, err := client.ZCard(ctx, q.leaseKey()).Result(); err != nil || n != 1 {
		t.Fatalf("expected 1 lease entry before ack, got n=%d err=%v", n, err)
	}

	if err := q.Ack(ctx, job); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	if n, err := client.LLen(ctx, q.processingKey()).Result(); err != nil || n != 0 {
		t.Fatalf("expected processing list empty after ack, got n=%d err=%v", n, err)
	}
	if n, err := client.ZCard(ctx, q.leaseKey()).Result(); err != nil || n != 0 {
		t.Fatalf("expected lease set empty after ack, got n=%d err=%v", n, err)
	}
}

func TestRedisQueue_ReapExpiredLeasesReturnsAbandonedJobToReady(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{RedisAddr: "127.0.0.1:6379"}
	client, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	queueKey := "test:queue:reap:" + time.Now().Format("20060102150405")
	q, err := NewRedisQueue(client, queueKey)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}
	q.leaseDuration = 10 * time.Millisecond
	defer func() {
		client.Del(ctx, queueKey, queueKey+":delayed", queueKey+":dead", queueKey+":processing", queueKey+":leases")
	}()

	if err := q.Enqueue(ctx, Job{Type: "ingest_document", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	dequeueCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	// Simulate a worker that crashes after leasing the job: dequeue it and
	// never Ack.
	if _, err := q.Dequeue(dequeueCtx); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	reaped, err := q.ReapExpiredLeases(ctx)
	if err != nil {
		t.Fatalf("ReapExpiredLeases failed: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("expected 1 job reaped, got %d", reaped)
	}

	redequeueCtx, cancel2 := context.WithTimeout(ctx, 2*time.Second)
	defer cancel2()
	redequeued, err := q.Dequeue(redequeueCtx)
	if err != nil {
		t.Fatalf("expected reaped job to be dequeueable again: %v", err)
	}
	if redequeued.Type != "ingest_document" {
		t.Errorf("expected reaped job type ingest_document, got %s", redequeued.Type)
	}
}
