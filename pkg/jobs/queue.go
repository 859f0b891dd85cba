package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned when a job is offered before Start.
	ErrNotStarted = errors.New("queue not started")
	// ErrStopped is returned once the queue is shutting down.
	ErrStopped = errors.New("queue stopped")
)

// Job is a unit of background work such as an outgoing email or an export.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A non-nil error schedules a retry.
type Handler func(context.Context, Job) error

// ExhaustedFunc receives a job after its final failed attempt.
type ExhaustedFunc func(Job, error)

// QueueConfig tunes a Queue. Zero values fall back to small defaults.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// RetryDelay is the first backoff step; it doubles per attempt up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Logger        *zap.Logger
	OnExhausted   ExhaustedFunc
	// OnAbandoned receives jobs still buffered or waiting on a retry when the
	// queue stops. The error wraps ErrStopped.
	OnAbandoned ExhaustedFunc
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = c.Workers * 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = c.RetryDelay * 16
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Queue fans jobs out to a fixed pool of goroutines with bounded retries.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	log     *zap.SugaredLogger

	jobs chan Job

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	workers sync.WaitGroup
	retries sync.WaitGroup
}

// NewQueue builds a queue named for log output. Nothing runs until Start.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		log:     cfg.Logger.Sugar().With("queue", name),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Later calls are ignored.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.workers.Add(q.cfg.Workers)
	for i := 1; i <= q.cfg.Workers; i++ {
		go q.run(i)
	}
	q.log.Infow("queue started", "workers", q.cfg.Workers)
}

// Stop cancels pending retries, waits for in-flight jobs to return and hands
// every job left behind to OnAbandoned. It also drains a queue whose parent
// context was already cancelled.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.ctx == nil || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.cancel()
	q.mu.Unlock()

	q.workers.Wait()
	q.retries.Wait()

	abandoned := 0
	for {
		select {
		case job := <-q.jobs:
			q.abandon(job)
			abandoned++
		default:
			q.log.Infow("queue stopped", "abandoned", abandoned)
			return
		}
	}
}

// Running reports whether the workers are consuming jobs.
func (q *Queue) Running() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.ctx != nil && !q.stopped && q.ctx.Err() == nil
}

// Pending returns the number of buffered jobs not yet picked up.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Enqueue hands job to the workers, blocking while the buffer is full. The
// read lock is held until the job is buffered so Stop cannot drain early.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	ctx := q.ctx

	if ctx == nil {
		return fmt.Errorf("%s: %w", q.name, ErrNotStarted)
	}
	if q.stopped || ctx.Err() != nil {
		return fmt.Errorf("%s: %w", q.name, ErrStopped)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", q.name, ErrStopped)
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) run(worker int) {
	defer q.workers.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if q.ctx.Err() != nil {
				q.abandon(job)
				return
			}
			if err := q.process(job); err != nil {
				q.fail(job, err, worker)
			}
		}
	}
}

func (q *Queue) process(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.handler(q.ctx, job)
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.cfg.MaxRetryDelay {
			return q.cfg.MaxRetryDelay
		}
	}
	return delay
}

func (q *Queue) fail(job Job, err error, worker int) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.log.Errorw("job gave up", "job_id", job.ID, "type", job.Type, "attempts", job.Attempt, "error", err)
		if q.cfg.OnExhausted != nil {
			q.cfg.OnExhausted(job, err)
		}
		return
	}

	delay := q.backoff(job.Attempt)
	q.log.Warnw("job failed", "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "retry_in", delay, "worker", worker, "error", err)

	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.abandon(job)
		case <-timer.C:
			if err := q.Enqueue(job); err != nil {
				q.log.Errorw("requeue failed", "job_id", job.ID, "error", err)
				q.abandon(job)
			}
		}
	}()
}

func (q *Queue) abandon(job Job) {
	q.log.Warnw("job abandoned", "job_id", job.ID, "type", job.Type, "attempts", job.Attempt)
	if q.cfg.OnAbandoned != nil {
		q.cfg.OnAbandoned(job, fmt.Errorf("%s: %w", q.name, ErrStopped))
	}
}
