package worker

import (
	"context"
	"sync"
	"time"

	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/queue"
)

// leaseExtendInterval is how often an in-flight job's lease is renewed,
// a third of the default 60s invisibility timeout so a renewal is never
// more than one interval late.
const leaseExtendInterval = 20 * time.Second

// HandlerFunc processes a job. It should return an error if processing fails.
// A returned error does not requeue the job itself; handlers that need
// retry/backoff/dead-letter semantics (the ingestion pipeline) own that
// logic internally and return nil once the job has been finally disposed
// of, one way or another.
type HandlerFunc func(ctx context.Context, job queue.Job) error

// StartWorkers starts a pool of workers that process jobs from the queue.
// ctx: context for cancellation (workers will stop when context is cancelled)
// q: the queue to dequeue jobs from
// handler: function to process each job
// workerCount: number of worker goroutines to start
func StartWorkers(ctx context.Context, q queue.Queue, handler HandlerFunc, workerCount int) error {
	logger.Printf("StartWorkers: workerCount=%d", workerCount)

	var wg sync.WaitGroup
	wg.Add(workerCount)

	for i := 0; i < workerCount; i++ {
		workerID := i + 1
		go func() {
			defer wg.Done()
			workerLoop(ctx, q, handler, workerID)
		}()
	}

	wg.Wait()
	logger.Printf("StartWorkers: all workers stopped")
	return nil
}

// workerLoop is the main loop for a single worker.
func workerLoop(ctx context.Context, q queue.Queue, handler HandlerFunc, workerID int) {
	logger.Printf("workerLoop: workerID=%d started", workerID)

	for {
		select {
		case <-ctx.Done():
			logger.Printf("workerLoop: workerID=%d context cancelled, stopping", workerID)
			return
		default:
		}

		job, err := q.Dequeue(ctx)
		if err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				logger.Printf("workerLoop: workerID=%d context cancelled during dequeue", workerID)
				return
			}
			logger.Errorf("workerLoop: workerID=%d dequeue error: %v, continuing", workerID, err)
			continue
		}

		logger.Printf("workerLoop: workerID=%d processing job type=%s attempt=%d", workerID, job.Type, job.Attempt)

		err = runWithLeaseExtension(ctx, q, job, handler)
		if err != nil {
			// The job was not finally disposed of; leave it leased rather
			// than Ack'ing, so its lease expiry returns it to the ready
			// set for another worker to pick up (e.g. after a crash).
			logger.Errorf("workerLoop: workerID=%d handler error for job type=%s: %v", workerID, job.Type, err)
			continue
		}

		if err := q.Ack(ctx, job); err != nil {
			logger.Errorf("workerLoop: workerID=%d failed to ack job type=%s: %v", workerID, job.Type, err)
		}

		logger.Printf("workerLoop: workerID=%d successfully processed job type=%s", workerID, job.Type)
	}
}

// runWithLeaseExtension runs handler for job, periodically extending its
// queue lease for the duration of the call so a long-running attempt isn't
// reaped as abandoned while it is still actively being worked, per §4.6
// ("workers extend the lease while actively processing").
func runWithLeaseExtension(ctx context.Context, q queue.Queue, job queue.Job, handler HandlerFunc) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(leaseExtendInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := q.ExtendLease(ctx, job); err != nil {
					logger.Errorf("workerLoop: failed to extend lease for job type=%s: %v", job.Type, err)
				}
			}
		}
	}()

	return handler(ctx, job)
}
