package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/northbound/ragcore/internal/queue"
)

// memQueue is an in-memory queue.Queue for exercising StartWorkers without
// a live Redis instance.
type memQueue struct {
	mu      sync.Mutex
	ready   []queue.Job
	notify  chan struct{}
}

func newMemQueue() *memQueue {
	return &memQueue{notify: make(chan struct{}, 1)}
}

func (q *memQueue) Enqueue(ctx context.Context, job queue.Job) error {
	q.mu.Lock()
	q.ready = append(q.ready, job)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *memQueue) EnqueueDelayed(ctx context.Context, job queue.Job, delay time.Duration) error {
	return q.Enqueue(ctx, job)
}

func (q *memQueue) DeadLetter(ctx context.Context, job queue.Job, reason string) error {
	return nil
}

func (q *memQueue) Ack(ctx context.Context, job queue.Job) error { return nil }

func (q *memQueue) ExtendLease(ctx context.Context, job queue.Job) error { return nil }

func (q *memQueue) Dequeue(ctx context.Context) (queue.Job, error) {
	for {
		q.mu.Lock()
		if len(q.ready) > 0 {
			job := q.ready[0]
			q.ready = q.ready[1:]
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return queue.Job{}, ctx.Err()
		case <-q.notify:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartWorkers_ProcessesAllJobs(t *testing.T) {
	q := newMemQueue()
	numJobs := 5
	for i := 0; i < numJobs; i++ {
		if err := q.Enqueue(context.Background(), queue.Job{Type: "test_job"}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	var mu sync.Mutex
	processed := 0
	handler := func(ctx context.Context, job queue.Job) error {
		mu.Lock()
		processed++
		mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- StartWorkers(ctx, q, handler, 2)
	}()

	deadline := time.After(400 * time.Millisecond)
	for {
		mu.Lock()
		count := processed
		mu.Unlock()
		if count == numJobs {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected %d jobs processed, got %d", numJobs, count)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestStartWorkers_HandlerErrorDoesNotStopWorker(t *testing.T) {
	q := newMemQueue()
	if err := q.Enqueue(context.Background(), queue.Job{Type: "bad_job"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(context.Background(), queue.Job{Type: "good_job"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	var mu sync.Mutex
	var seen []string
	handler := func(ctx context.Context, job queue.Job) error {
		mu.Lock()
		seen = append(seen, job.Type)
		mu.Unlock()
		if job.Type == "bad_job" {
			return context.DeadlineExceeded
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- StartWorkers(ctx, q, handler, 1)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("expected both jobs to be attempted, got %v", seen)
	}
}
