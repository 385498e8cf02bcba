package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docstore"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/services"
)

// Trigger identifies what caused a job to be enqueued.
type Trigger string

const (
	TriggerWebhook  Trigger = "webhook"
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Job is one queued unit of work. Kind and Status use the docstore job
// vocabulary so the in-memory view and the ledger rows line up.
type Job struct {
	ID          string        `json:"id"`
	Kind        string        `json:"kind"`
	Repository  string        `json:"repository,omitempty"`
	Trigger     Trigger       `json:"trigger"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       string        `json:"error,omitempty"`

	cancel context.CancelFunc
}

type jobParameters struct {
	Repository string `json:"repository,omitempty"`
	Trigger    string `json:"trigger"`
}

// Queue runs enqueued jobs on a fixed pool of workers. When a store is
// attached, every job also gets a ledger row that follows its lifecycle.
type Queue struct {
	jobs        chan *Job
	workers     int
	maxSize     int
	mu          sync.RWMutex
	active      map[string]*Job
	history     []*Job
	historySize int
	stopChan    chan struct{}
	wg          sync.WaitGroup

	runner   services.Service
	store    *docstore.Store
	recorder metrics.Recorder
}

// NewQueue creates a queue backed by runner. Non-positive sizes fall back to
// the configuration defaults.
func NewQueue(maxSize, workers int, runner services.Service) *Queue {
	if maxSize <= 0 {
		maxSize = config.DefaultQueueSize
	}
	if workers <= 0 {
		workers = config.DefaultWorkers
	}

	return &Queue{
		jobs:        make(chan *Job, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		active:      make(map[string]*Job),
		history:     make([]*Job, 0),
		historySize: 50,
		stopChan:    make(chan struct{}),
		runner:      runner,
		recorder:    metrics.NoopRecorder{},
	}
}

// WithStore attaches the job ledger.
func (q *Queue) WithStore(store *docstore.Store) *Queue {
	q.store = store
	return q
}

// WithRecorder attaches a metrics recorder.
func (q *Queue) WithRecorder(rec metrics.Recorder) *Queue {
	if rec != nil {
		q.recorder = rec
	}
	return q
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("starting job queue", slog.Int("workers", q.workers), slog.Int("max_size", q.maxSize))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels active jobs and waits for the workers to drain. Safe to call
// more than once.
func (q *Queue) Stop(ctx context.Context) {
	slog.Info("stopping job queue")

	select {
	case <-q.stopChan:
	default:
		close(q.stopChan)
	}

	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()
	slog.Info("job queue stopped")
}

// EnqueueProcess queues a single-repository processing run.
func (q *Queue) EnqueueProcess(ctx context.Context, repository string, trigger Trigger) (string, error) {
	if repository == "" {
		return "", fmt.Errorf("repository is required")
	}
	return q.enqueue(ctx, &Job{
		Kind:       docstore.JobProcessRepository,
		Repository: repository,
		Trigger:    trigger,
	})
}

// EnqueueScan queues an organization scan.
func (q *Queue) EnqueueScan(ctx context.Context, trigger Trigger) (string, error) {
	return q.enqueue(ctx, &Job{Kind: docstore.JobScanOrganization, Trigger: trigger})
}

// enqueue records the job in the ledger before offering it to the channel, so
// a worker can never observe a job whose row does not exist yet.
func (q *Queue) enqueue(ctx context.Context, job *Job) (string, error) {
	job.ID = uuid.NewString()
	job.Status = docstore.JobStatusPending
	job.CreatedAt = time.Now()

	if q.store != nil {
		params, err := json.Marshal(jobParameters{Repository: job.Repository, Trigger: string(job.Trigger)})
		if err != nil {
			params = []byte("{}")
		}
		if _, err := q.store.CreateJob(ctx, &docstore.Job{
			ID:         job.ID,
			JobType:    job.Kind,
			Parameters: string(params),
		}); err != nil {
			slog.Warn("job ledger row not created", logfields.JobID(job.ID), logfields.Error(err))
		}
	}

	select {
	case q.jobs <- job:
		slog.Info("job enqueued",
			logfields.JobID(job.ID),
			logfields.JobType(job.Kind),
			slog.String("trigger", string(job.Trigger)))
		return job.ID, nil
	default:
		if q.store != nil {
			if err := q.store.UpdateJobStatus(ctx, job.ID, docstore.JobStatusFailed, "job queue is full"); err != nil {
				slog.Warn("job ledger row not updated", logfields.JobID(job.ID), logfields.Error(err))
			}
		}
		return "", fmt.Errorf("job queue is full")
	}
}

// Length returns the number of jobs waiting in the channel.
func (q *Queue) Length() int {
	return len(q.jobs)
}

// Active returns a copy of the currently running jobs.
func (q *Queue) Active() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	active := make([]*Job, 0, len(q.active))
	for _, job := range q.active {
		active = append(active, job)
	}
	return active
}

// History returns recently finished jobs, oldest first.
func (q *Queue) History() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	history := make([]*Job, len(q.history))
	copy(history, q.history)
	return history
}

func (q *Queue) worker(ctx context.Context, workerID string) {
	defer q.wg.Done()

	slog.Debug("queue worker started", slog.String("worker", workerID))

	for {
		select {
		case <-ctx.Done():
			slog.Debug("queue worker stopped by context", slog.String("worker", workerID))
			return
		case <-q.stopChan:
			slog.Debug("queue worker stopped by stop signal", slog.String("worker", workerID))
			return
		case job := <-q.jobs:
			if job != nil {
				q.processJob(ctx, job, workerID)
			}
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *Job, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel
	defer cancel()

	start := time.Now()
	job.StartedAt = &start
	job.Status = docstore.JobStatusRunning

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()

	q.updateLedger(jobCtx, job.ID, docstore.JobStatusRunning, "")

	slog.Info("job started",
		logfields.JobID(job.ID),
		logfields.JobType(job.Kind),
		slog.String("worker", workerID))

	err := q.execute(jobCtx, job)

	end := time.Now()
	job.CompletedAt = &end
	job.Duration = end.Sub(start)

	q.mu.Lock()
	delete(q.active, job.ID)
	q.addToHistory(job)
	q.mu.Unlock()

	status := docstore.JobStatusCompleted
	if err != nil {
		status = docstore.JobStatusFailed
		job.Error = err.Error()
	}
	job.Status = status

	// The terminal state is written even when the job context was cancelled,
	// otherwise shutdown leaves rows stuck in running.
	q.updateLedger(context.WithoutCancel(jobCtx), job.ID, status, job.Error)
	q.recorder.IncJobResult(job.Kind, status)

	if err != nil {
		slog.Error("job failed",
			logfields.JobID(job.ID),
			logfields.JobType(job.Kind),
			slog.Duration("duration", job.Duration),
			logfields.Error(err))
		return
	}
	slog.Info("job completed",
		logfields.JobID(job.ID),
		logfields.JobType(job.Kind),
		slog.Duration("duration", job.Duration))
}

func (q *Queue) execute(ctx context.Context, job *Job) error {
	switch job.Kind {
	case docstore.JobProcessRepository:
		_, err := q.runner.ProcessRepository(ctx, services.ProcessRequest{
			Repository: job.Repository,
			Export:     true,
		})
		return err
	case docstore.JobScanOrganization:
		_, err := q.runner.ScanOrganization(ctx)
		return err
	default:
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
}

func (q *Queue) updateLedger(ctx context.Context, jobID, status, errorMessage string) {
	if q.store == nil {
		return
	}
	if err := q.store.UpdateJobStatus(ctx, jobID, status, errorMessage); err != nil {
		slog.Warn("job ledger row not updated",
			logfields.JobID(jobID),
			logfields.JobStatus(status),
			logfields.Error(err))
	}
}

func (q *Queue) addToHistory(job *Job) {
	q.history = append(q.history, job)

	if len(q.history) > q.historySize {
		copy(q.history, q.history[len(q.history)-q.historySize:])
		q.history = q.history[:q.historySize]
	}
}
