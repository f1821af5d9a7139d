package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForStatus polls the store until the job reaches a terminal state.
func waitForStatus(t *testing.T, store Store, id string, want Status) *Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(id)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(id)
	t.Fatalf("job %s never reached %s (last: %s)", id, want, job.Status)
	return nil
}

func TestQueue(t *testing.T) {
	t.Run("executes submitted job", func(t *testing.T) {
		store := NewMemoryStore()
		queue := NewQueue(2, store, nil)

		var mu sync.Mutex
		var executed []string
		queue.RegisterExecutor("test", ExecutorFunc(func(ctx context.Context, job *Job) error {
			mu.Lock()
			executed = append(executed, job.Payload)
			mu.Unlock()
			return nil
		}))

		queue.Start(context.Background())
		defer queue.Stop(5 * time.Second)

		job := &Job{ID: "job-1", Type: "test", Payload: "batch-1"}
		require.NoError(t, queue.Submit(job))

		done := waitForStatus(t, store, "job-1", StatusCompleted)
		assert.NotNil(t, done.StartedAt)
		assert.NotNil(t, done.CompletedAt)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"batch-1"}, executed)
	})

	t.Run("submit assigns a trace ID", func(t *testing.T) {
		store := NewMemoryStore()
		queue := NewQueue(1, store, nil)
		queue.RegisterExecutor("test", ExecutorFunc(func(ctx context.Context, job *Job) error {
			return nil
		}))

		queue.Start(context.Background())
		defer queue.Stop(5 * time.Second)

		job := &Job{ID: "job-traced", Type: "test"}
		require.NoError(t, queue.Submit(job))
		assert.NotEmpty(t, job.TraceID)

		// A caller-supplied trace ID is kept.
		supplied := &Job{ID: "job-supplied", Type: "test", TraceID: "upstream-trace"}
		require.NoError(t, queue.Submit(supplied))
		assert.Equal(t, "upstream-trace", supplied.TraceID)
	})

	t.Run("executor error fails the job", func(t *testing.T) {
		store := NewMemoryStore()
		queue := NewQueue(1, store, nil)
		queue.RegisterExecutor("test", ExecutorFunc(func(ctx context.Context, job *Job) error {
			return errors.New("workbook exploded")
		}))

		queue.Start(context.Background())
		defer queue.Stop(5 * time.Second)

		require.NoError(t, queue.Submit(&Job{ID: "job-2", Type: "test"}))

		failed := waitForStatus(t, store, "job-2", StatusFailed)
		assert.Equal(t, "workbook exploded", failed.Error)
		assert.NotNil(t, failed.CompletedAt)
	})

	t.Run("executor panic is recovered as failure", func(t *testing.T) {
		store := NewMemoryStore()
		queue := NewQueue(1, store, nil)
		queue.RegisterExecutor("test", ExecutorFunc(func(ctx context.Context, job *Job) error {
			panic("boom")
		}))

		queue.Start(context.Background())
		defer queue.Stop(5 * time.Second)

		require.NoError(t, queue.Submit(&Job{ID: "job-3", Type: "test"}))

		failed := waitForStatus(t, store, "job-3", StatusFailed)
		assert.Contains(t, failed.Error, "panicked")

		// The worker survived the panic and still takes jobs.
		require.NoError(t, queue.Submit(&Job{ID: "job-4", Type: "test"}))
		waitForStatus(t, store, "job-4", StatusFailed)
	})

	t.Run("rejects unknown job type", func(t *testing.T) {
		queue := NewQueue(1, NewMemoryStore(), nil)
		err := queue.Submit(&Job{ID: "job-5", Type: "unknown"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no executor registered")
	})

	t.Run("get prefers active record", func(t *testing.T) {
		store := NewMemoryStore()
		queue := NewQueue(1, store, nil)

		started := make(chan struct{})
		release := make(chan struct{})
		queue.RegisterExecutor("test", ExecutorFunc(func(ctx context.Context, job *Job) error {
			close(started)
			<-release
			return nil
		}))

		queue.Start(context.Background())
		defer queue.Stop(5 * time.Second)

		require.NoError(t, queue.Submit(&Job{ID: "job-6", Type: "test"}))
		<-started

		job, err := queue.Get("job-6")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, job.Status)

		close(release)
		waitForStatus(t, store, "job-6", StatusCompleted)
	})

	t.Run("stats reflect workers", func(t *testing.T) {
		queue := NewQueue(3, NewMemoryStore(), nil)
		stats := queue.Stats()
		assert.Equal(t, 3, stats["workers"])
		assert.Equal(t, 0, stats["active_jobs"])
	})
}

func TestQueueStop(t *testing.T) {
	t.Run("waits for in-flight job", func(t *testing.T) {
		store := NewMemoryStore()
		queue := NewQueue(1, store, nil)

		started := make(chan struct{})
		queue.RegisterExecutor("test", ExecutorFunc(func(ctx context.Context, job *Job) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			return nil
		}))

		queue.Start(context.Background())
		require.NoError(t, queue.Submit(&Job{ID: "job-7", Type: "test"}))
		<-started

		require.NoError(t, queue.Stop(5*time.Second))

		job, err := store.GetJob("job-7")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, job.Status)
	})

	t.Run("times out on stuck worker", func(t *testing.T) {
		queue := NewQueue(1, NewMemoryStore(), nil)

		started := make(chan struct{})
		release := make(chan struct{})
		queue.RegisterExecutor("test", ExecutorFunc(func(ctx context.Context, job *Job) error {
			close(started)
			<-release
			return nil
		}))

		queue.Start(context.Background())
		require.NoError(t, queue.Submit(&Job{ID: "job-8", Type: "test"}))
		<-started

		err := queue.Stop(50 * time.Millisecond)
		assert.Error(t, err)
		close(release)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	job := &Job{ID: "a", Type: JobTypeIngest, Status: StatusQueued, CreatedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, store.CreateJob(job))
	assert.Error(t, store.CreateJob(job), "duplicate ID must be rejected")

	got, err := store.GetJob("a")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)

	// Mutating the returned copy must not touch the stored record.
	got.Status = StatusFailed
	again, err := store.GetJob("a")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, again.Status)

	later := &Job{ID: "b", Type: JobTypeIngest, Status: StatusCompleted, CreatedAt: time.Now()}
	require.NoError(t, store.CreateJob(later))

	jobs, err := store.ListJobs(Filter{Type: JobTypeIngest})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].ID, "newest first")

	completed, err := store.ListJobs(Filter{Status: StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "b", completed[0].ID)

	limited, err := store.ListJobs(Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, store.DeleteJob("a"))
	_, err = store.GetJob("a")
	assert.Error(t, err)
	assert.Error(t, store.DeleteJob("a"))
	assert.Error(t, store.UpdateJob(&Job{ID: "a"}))
}
