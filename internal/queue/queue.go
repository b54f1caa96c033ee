package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Job represents a job in the queue.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	Attempt   int             `json:"attempt"`

	// raw is the exact serialized form this job was dequeued as. It is
	// unexported and never (de)serialized itself; Ack/ExtendLease use it
	// to identify this job's entry in the processing list without
	// re-marshaling (which could drift from the original bytes).
	raw string `json:"-"`
}

// Queue defines the interface for job queues.
type Queue interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue blocks until a job is available, leases it (moving it to an
	// invisible processing set per §4.6's invisibility-timeout contract),
	// and returns it. Returns an error if the context is cancelled or if
	// the operation fails.
	Dequeue(ctx context.Context) (Job, error)

	// Ack acknowledges successful (or finally-disposed) processing of job,
	// removing it from the processing set so it is not returned to the
	// ready set when its lease expires.
	Ack(ctx context.Context, job Job) error

	// ExtendLease pushes job's invisibility deadline forward. Callers still
	// actively processing a job call this periodically to avoid the lease
	// expiring out from under them mid-work.
	ExtendLease(ctx context.Context, job Job) error

	// EnqueueDelayed schedules a job to become dequeueable after delay has
	// elapsed, for retry backoff.
	EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) error

	// DeadLetter moves a job to the dead-letter set for operator review.
	DeadLetter(ctx context.Context, job Job, reason string) error
}

var _ Queue = (*RedisQueue)(nil)

