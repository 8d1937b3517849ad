package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"waitwhat-backend/internal/models"
)

const jobLockTTL = 10 * time.Minute

// Queue carries jobs from the services to the worker goroutines. Pop
// returns nil, nil when nothing arrived within the timeout.
type Queue interface {
	Push(ctx context.Context, job *models.Job) error
	Pop(ctx context.Context, timeout time.Duration) (*models.Job, error)
	Claim(ctx context.Context, jobID uuid.UUID) (bool, error)
	Release(ctx context.Context, jobID uuid.UUID)
}

var jobQueues = []string{
	jobQueueName(models.JobTypeQAAnswer),
	jobQueueName(models.JobTypeLostSummary),
}

func jobQueueName(jobType string) string {
	return "queue:" + jobType
}

// RedisQueue keeps one list per job type and a short-lived lock key per
// job so a redelivered payload is processed by one worker at a time.
type RedisQueue struct {
	redis *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{redis: client}
}

func (q *RedisQueue) Push(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	return q.redis.LPush(ctx, jobQueueName(job.Type), string(data)).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	result, err := q.redis.BLPop(ctx, timeout, jobQueues...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}

	var job models.Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Claim(ctx context.Context, jobID uuid.UUID) (bool, error) {
	return q.redis.SetNX(ctx, jobLockKey(jobID), "1", jobLockTTL).Result()
}

func (q *RedisQueue) Release(ctx context.Context, jobID uuid.UUID) {
	q.redis.Del(context.WithoutCancel(ctx), jobLockKey(jobID))
}

func jobLockKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job_lock:%s", jobID.String())
}

// MemoryQueue is the single-process queue used when no Redis is configured.
type MemoryQueue struct {
	jobs    chan models.Job
	mu      sync.Mutex
	claimed map[uuid.UUID]struct{}
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		jobs:    make(chan models.Job, capacity),
		claimed: make(map[uuid.UUID]struct{}),
	}
}

func (q *MemoryQueue) Push(ctx context.Context, job *models.Job) error {
	select {
	case q.jobs <- *job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case job := <-q.jobs:
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Claim(_ context.Context, jobID uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.claimed[jobID]; ok {
		return false, nil
	}
	q.claimed[jobID] = struct{}{}
	return true, nil
}

func (q *MemoryQueue) Release(_ context.Context, jobID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, jobID)
}
