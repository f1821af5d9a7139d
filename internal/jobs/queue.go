package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fundlens/internal/infrastructure"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// JobTypeIngest is the job type for batch ingestion.
const JobTypeIngest = "ingest"

// Job is one unit of asynchronous work. Payload carries the executor's
// input; for ingest jobs it is the batch ID.
type Job struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Payload     string         `json:"payload,omitempty"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	TraceID     string         `json:"trace_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Executor runs one job type. The returned error marks the job failed.
type Executor interface {
	Execute(ctx context.Context, job *Job) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *Job) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// Store persists job records.
type Store interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter Filter) ([]*Job, error)
	DeleteJob(id string) error
}

// Filter selects jobs from a Store.
type Filter struct {
	Status Status
	Type   string
	Since  time.Time
	Limit  int
}

// Queue manages asynchronous job execution over a fixed worker pool.
type Queue struct {
	mu        sync.RWMutex
	jobs      chan *Job
	workers   int
	wg        sync.WaitGroup
	store     Store
	executors map[string]Executor
	logger    *slog.Logger
	shutdown  chan struct{}
	active    map[string]*Job
}

// NewQueue creates a job queue with the given worker count.
func NewQueue(workers int, store Store, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		jobs:      make(chan *Job, workers*2),
		workers:   workers,
		store:     store,
		executors: make(map[string]Executor),
		logger:    logger.With(slog.String("component", "jobqueue")),
		shutdown:  make(chan struct{}),
		active:    make(map[string]*Job),
	}
}

// RegisterExecutor binds an executor to a job type. Submit rejects job
// types without a registered executor, so bind before starting the queue.
func (q *Queue) RegisterExecutor(jobType string, executor Executor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.executors[jobType] = executor
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop drains the worker pool, waiting up to timeout for in-flight jobs.
func (q *Queue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")

	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped gracefully")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Submit stores the job and hands it to the worker pool. A full queue fails
// the job immediately rather than blocking the caller.
func (q *Queue) Submit(job *Job) error {
	q.mu.RLock()
	_, registered := q.executors[job.Type]
	q.mu.RUnlock()
	if !registered {
		return fmt.Errorf("no executor registered for job type %q", job.Type)
	}

	job.Status = StatusQueued
	job.CreatedAt = time.Now()
	if job.TraceID == "" {
		job.TraceID = infrastructure.GenerateTraceID()
	}

	if err := q.store.CreateJob(job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.jobs <- job:
		q.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("type", job.Type))
		return nil
	default:
		job.Status = StatusFailed
		job.Error = "job queue is full"
		now := time.Now()
		job.CompletedAt = &now
		q.store.UpdateJob(job)
		return fmt.Errorf("job queue is full")
	}
}

// Get retrieves a job by ID, preferring the live in-flight record.
func (q *Queue) Get(id string) (*Job, error) {
	q.mu.RLock()
	if activeJob, ok := q.active[id]; ok {
		q.mu.RUnlock()
		return activeJob, nil
	}
	q.mu.RUnlock()

	return q.store.GetJob(id)
}

// List returns jobs matching the filter.
func (q *Queue) List(filter Filter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// Stats returns queue statistics for health reporting.
func (q *Queue) Stats() map[string]interface{} {
	q.mu.RLock()
	activeCount := len(q.active)
	q.mu.RUnlock()

	return map[string]interface{}{
		"workers":     q.workers,
		"queue_size":  len(q.jobs),
		"queue_cap":   cap(q.jobs),
		"active_jobs": activeCount,
	}
}

// worker drains the job channel until shutdown.
func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, logger)
		}
	}
}

// processJob executes a single job, recovering any executor panic into a
// job failure.
func (q *Queue) processJob(ctx context.Context, job *Job, logger *slog.Logger) {
	if job.TraceID != "" {
		ctx = infrastructure.WithTraceID(ctx, job.TraceID)
	} else {
		ctx = infrastructure.EnsureTraceID(ctx)
	}

	logger = logger.With(
		slog.String("job_id", job.ID),
		slog.String("type", job.Type),
	)

	logger.InfoContext(ctx, "processing job started")

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "job processing panicked", slog.Any("panic", r))

			job.Status = StatusFailed
			job.Error = fmt.Sprintf("job processing panicked: %v", r)
			completedAt := time.Now()
			job.CompletedAt = &completedAt

			if err := q.store.UpdateJob(job); err != nil {
				logger.ErrorContext(ctx, "failed to update job after panic", slog.String("error", err.Error()))
			}
		}

		q.mu.Lock()
		delete(q.active, job.ID)
		q.mu.Unlock()
	}()

	job.Status = StatusRunning
	now := time.Now()
	job.StartedAt = &now

	if err := q.store.UpdateJob(job); err != nil {
		logger.ErrorContext(ctx, "failed to update job status", slog.String("error", err.Error()))
	}

	q.mu.RLock()
	executor := q.executors[job.Type]
	q.mu.RUnlock()

	if err := executor.Execute(ctx, job); err != nil {
		q.handleJobError(ctx, job, err, logger)
		return
	}

	job.Status = StatusCompleted
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err := q.store.UpdateJob(job); err != nil {
		logger.ErrorContext(ctx, "failed to update job completion", slog.String("error", err.Error()))
	}

	logger.InfoContext(ctx, "processing job completed")
}

// handleJobError marks the job failed and records the cause.
func (q *Queue) handleJobError(ctx context.Context, job *Job, err error, logger *slog.Logger) {
	logger.ErrorContext(ctx, "job failed", slog.String("error", err.Error()))

	job.Status = StatusFailed
	job.Error = err.Error()
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if updateErr := q.store.UpdateJob(job); updateErr != nil {
		logger.ErrorContext(ctx, "failed to update job error", slog.String("error", updateErr.Error()))
	}
}
