package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/services"
)

const defaultPollTimeout = 30 * time.Second

// Handler runs one job. A returned error schedules a retry until the job
// runs out of attempts.
type Handler func(ctx context.Context, job *models.Job) error

// JobStore persists job bookkeeping next to the queue payloads.
type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

var _ services.JobScheduler = (*Pool)(nil)

type Pool struct {
	queue       Queue
	jobs        JobStore
	publisher   services.EventPublisher
	workerCount int
	pollTimeout time.Duration
	backoff     func(retry int) time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(queue Queue, jobs JobStore, publisher services.EventPublisher, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		queue:       queue,
		jobs:        jobs,
		publisher:   publisher,
		workerCount: workerCount,
		pollTimeout: defaultPollTimeout,
		backoff: func(retry int) time.Duration {
			return time.Duration(1<<uint(retry)) * time.Second
		},
	}
}

// Enqueue records the job and hands it to the queue.
func (p *Pool) Enqueue(ctx context.Context, job *models.Job) error {
	if err := p.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if err := p.queue.Push(ctx, job); err != nil {
		return fmt.Errorf("failed to queue job: %w", err)
	}
	return nil
}

func (p *Pool) Start(handler Handler) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.worker(ctx, id, handler)
		}(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int, handler Handler) {
	for {
		if ctx.Err() != nil {
			log.Printf("Worker %d shutting down", id)
			return
		}

		job, err := p.queue.Pop(ctx, p.pollTimeout)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Worker %d: failed to read queue: %v", id, err)
			}
			continue
		}
		if job == nil {
			continue
		}

		locked, err := p.queue.Claim(ctx, job.ID)
		if err != nil || !locked {
			continue // Another worker has this job
		}

		p.process(context.WithoutCancel(ctx), id, job, handler)
	}
}

func (p *Pool) process(ctx context.Context, id int, job *models.Job, handler Handler) {
	log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusProcessing)

	err := runHandler(ctx, handler, job)
	p.queue.Release(ctx, job.ID)
	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}

	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusCompleted)
	log.Printf("Job %s completed successfully", job.ID)
}

func runHandler(ctx context.Context, handler Handler, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

	if job.RetryCount < job.MaxRetries {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusPending)

		retry := *job
		time.AfterFunc(p.backoff(job.RetryCount), func() {
			if err := p.queue.Push(context.Background(), &retry); err != nil {
				log.Printf("failed to requeue job %s: %v", retry.ID, err)
			}
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed)

	if p.publisher != nil {
		p.publisher.Publish(ctx, job.SessionID, models.WSMessage{
			Type: models.EventJobFailed,
			Payload: models.ErrorEvent{
				JobID:        job.ID,
				ErrorCode:    "JOB_FAILED",
				ErrorMessage: errMsg,
			},
		})
	}
}
