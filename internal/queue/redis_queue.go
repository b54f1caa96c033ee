package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/northbound/ragcore/internal/logger"
)

// defaultLeaseDuration is the invisibility timeout T from §4.6 (default 60s).
const defaultLeaseDuration = 60 * time.Second

// RedisQueue implements Queue using Redis Lists for the ready set and a
// per-worker-invisible processing list, a sorted set tracking each leased
// job's invisibility deadline, a sorted set for delayed (backoff) retries,
// and a list for dead-lettered jobs.
type RedisQueue struct {
	client        *redis.Client
	key           string
	leaseDuration time.Duration
}

// NewRedisQueue creates a new Redis-backed queue.
// client: the Redis client to use
// key: the Redis key name for the queue (e.g., "jobs:ingest")
func NewRedisQueue(client *redis.Client, key string) (*RedisQueue, error) {
	if key == "" {
		key = "jobs:default"
	}

	logger.Printf("NewRedisQueue: key=%s", key)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Errorf("NewRedisQueue: failed to ping Redis: %v", err)
		return nil, err
	}

	return &RedisQueue{
		client:        client,
		key:           key,
		leaseDuration: defaultLeaseDuration,
	}, nil
}

func (r *RedisQueue) delayedKey() string    { return r.key + ":delayed" }
func (r *RedisQueue) deadKey() string       { return r.key + ":dead" }
func (r *RedisQueue) processingKey() string { return r.key + ":processing" }
func (r *RedisQueue) leaseKey() string      { return r.key + ":leases" }

// Enqueue adds a job to the queue using RPUSH, assigning it a durable
// queue-transport id on first enqueue if it doesn't already have one.
func (r *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Enqueue: failed to marshal job: %v", err)
		return err
	}

	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		logger.Errorf("Enqueue: failed to push to Redis: %v", err)
		return err
	}

	logger.Printf("Enqueue: key=%s type=%s attempt=%d", r.key, job.Type, job.Attempt)
	return nil
}

// EnqueueDelayed schedules job onto a sorted set keyed by its ready-at
// timestamp; PromoteDelayed moves due jobs onto the ready list.
func (r *RedisQueue) EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	readyAt := float64(time.Now().Add(delay).UnixMilli())
	if err := r.client.ZAdd(ctx, r.delayedKey(), redis.Z{Score: readyAt, Member: data}).Err(); err != nil {
		logger.Errorf("EnqueueDelayed: failed to schedule job: %v", err)
		return err
	}
	logger.Printf("EnqueueDelayed: key=%s type=%s attempt=%d delay=%s", r.key, job.Type, job.Attempt, delay)
	return nil
}

// DeadLetter moves job to the dead-letter list for operator inspection.
func (r *RedisQueue) DeadLetter(ctx context.Context, job Job, reason string) error {
	record := struct {
		Job    Job    `json:"job"`
		Reason string `json:"reason"`
		At     string `json:"at"`
	}{Job: job, Reason: reason, At: time.Now().Format(time.RFC3339)}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, r.deadKey(), data).Err(); err != nil {
		logger.Errorf("DeadLetter: failed to push to Redis: %v", err)
		return err
	}
	logger.Printf("DeadLetter: key=%s type=%s reason=%s", r.key, job.Type, reason)
	return nil
}

// PromoteDelayed moves any jobs whose delay has elapsed from the delayed
// sorted set onto the ready list. Call it periodically from a background
// goroutine; it is safe to call concurrently from multiple workers.
func (r *RedisQueue) PromoteDelayed(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	members, err := r.client.ZRangeByScore(ctx, r.delayedKey(), &redis.ZRangeBy{
		Min: "-inf", Max: now,
	}).Result()
	if err != nil {
		return 0, err
	}
	promoted := 0
	for _, m := range members {
		removed, err := r.client.ZRem(ctx, r.delayedKey(), m).Result()
		if err != nil || removed == 0 {
			continue // another worker already promoted it
		}
		if err := r.client.RPush(ctx, r.key, m).Err(); err != nil {
			logger.Errorf("PromoteDelayed: failed to requeue job: %v", err)
			continue
		}
		promoted++
	}
	return promoted, nil
}

// Dequeue blocks until a job is available using BRPOPLPUSH, atomically
// moving it onto the invisible processing list, records its lease
// deadline, and returns it. Per §4.6's queue contract, the job stays
// invisible until Ack'd or its lease (default 60s, see leaseDuration)
// expires and ReapExpiredLeases returns it to the ready list.
func (r *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	type result struct {
		val string
		err error
	}
	resultChan := make(chan result, 1)

	go func() {
		val, err := r.client.BRPopLPush(ctx, r.key, r.processingKey(), 0).Result()
		resultChan <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			if res.err == redis.Nil {
				return Job{}, ctx.Err()
			}
			logger.Errorf("Dequeue: failed to pop from Redis: %v", res.err)
			return Job{}, res.err
		}

		var job Job
		if err := json.Unmarshal([]byte(res.val), &job); err != nil {
			logger.Errorf("Dequeue: failed to unmarshal job: %v", err)
			return Job{}, err
		}
		job.raw = res.val

		deadline := float64(time.Now().Add(r.leaseDuration).UnixMilli())
		if err := r.client.ZAdd(ctx, r.leaseKey(), redis.Z{Score: deadline, Member: res.val}).Err(); err != nil {
			logger.Errorf("Dequeue: failed to record lease for job %s: %v", job.ID, err)
		}

		return job, nil
	}
}

// rawOf returns the exact bytes job was dequeued as, falling back to a
// fresh marshal for jobs constructed directly (e.g. in tests) rather than
// returned from Dequeue.
func (r *RedisQueue) rawOf(job Job) (string, error) {
	if job.raw != "" {
		return job.raw, nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Ack removes job from the processing list and its lease entry, marking it
// finally disposed of (succeeded, retry-rescheduled, or dead-lettered).
func (r *RedisQueue) Ack(ctx context.Context, job Job) error {
	raw, err := r.rawOf(job)
	if err != nil {
		return err
	}
	if err := r.client.LRem(ctx, r.processingKey(), 1, raw).Err(); err != nil {
		logger.Errorf("Ack: failed to remove job %s from processing list: %v", job.ID, err)
		return err
	}
	if err := r.client.ZRem(ctx, r.leaseKey(), raw).Err(); err != nil {
		logger.Errorf("Ack: failed to clear lease for job %s: %v", job.ID, err)
	}
	return nil
}

// ExtendLease pushes job's invisibility deadline forward by leaseDuration
// from now, for a worker still actively processing it.
func (r *RedisQueue) ExtendLease(ctx context.Context, job Job) error {
	raw, err := r.rawOf(job)
	if err != nil {
		return err
	}
	deadline := float64(time.Now().Add(r.leaseDuration).UnixMilli())
	if err := r.client.ZAdd(ctx, r.leaseKey(), redis.Z{Score: deadline, Member: raw}).Err(); err != nil {
		logger.Errorf("ExtendLease: failed to extend lease for job %s: %v", job.ID, err)
		return err
	}
	return nil
}

// ReapExpiredLeases moves every job whose lease deadline has passed from
// the processing list back onto the ready list, recovering jobs whose
// worker was abandoned (e.g. a pod crash) mid-processing, per §4.6's "next
// lease of the same job resumes from step 1" rule. Call it periodically
// from a background goroutine; safe to call concurrently from multiple
// workers.
func (r *RedisQueue) ReapExpiredLeases(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	expired, err := r.client.ZRangeByScore(ctx, r.leaseKey(), &redis.ZRangeBy{
		Min: "-inf", Max: now,
	}).Result()
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, raw := range expired {
		removed, err := r.client.ZRem(ctx, r.leaseKey(), raw).Result()
		if err != nil || removed == 0 {
			continue // another worker already reaped or Ack'd this job
		}
		n, err := r.client.LRem(ctx, r.processingKey(), 1, raw).Result()
		if err != nil {
			logger.Errorf("ReapExpiredLeases: failed to remove from processing list: %v", err)
			continue
		}
		if n == 0 {
			continue // already Ack'd between the ZRangeByScore read and here
		}
		if err := r.client.RPush(ctx, r.key, raw).Err(); err != nil {
			logger.Errorf("ReapExpiredLeases: failed to requeue expired job: %v", err)
			continue
		}
		reaped++
	}
	return reaped, nil
}
