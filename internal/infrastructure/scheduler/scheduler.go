// Package scheduler runs background jobs on a bounded worker pool. Jobs are
// dispatched by name with a JSON payload and retried with a fixed delay.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/logger"
	"github.com/erp/listingsync/internal/infrastructure/telemetry"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one queued unit of background work
type Job struct {
	ID          uuid.UUID
	Name        string
	Payload     []byte
	RequestID   string // request that dispatched the job, for log correlation
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
}

// NewJob creates a new job instance
func NewJob(name string, payload []byte, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Name:       name,
		Payload:    payload,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry resets the job for another attempt
func (j *Job) ScheduleRetry() {
	j.RetryCount++
	j.Status = JobStatusPending
	j.Error = ""
}

// JobHandler executes the payload of one job name
type JobHandler interface {
	Handle(ctx context.Context, payload []byte) error
}

// HandlerFunc adapts a function to JobHandler
type HandlerFunc func(ctx context.Context, payload []byte) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}

// HandlerOption configures a registered handler
type HandlerOption func(*registration)

// WithMaxRetries overrides the configured retry count for one job name.
// Jobs that are not safe to repeat register with zero.
func WithMaxRetries(n int) HandlerOption {
	return func(r *registration) {
		r.maxRetries = n
	}
}

type registration struct {
	handler    JobHandler
	maxRetries int
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:       4,
		QueueSize:     256,
		JobTimeout:    10 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    30 * time.Second,
	}
}

// Validate checks the configuration
func (c SchedulerConfig) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 {
		return fmt.Errorf("%w: workers and queue size must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if c.RetryAttempts < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("%w: retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Scheduler is an in-process job queue served by a fixed worker pool.
// It implements integration.JobDispatcher.
type Scheduler struct {
	config SchedulerConfig
	logger *zap.Logger

	handlers map[string]registration
	jobs     chan *Job
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	retries  sync.WaitGroup
	mu       sync.RWMutex
	running  bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		config:   config,
		logger:   logger.Named("scheduler"),
		handlers: make(map[string]registration),
		jobs:     make(chan *Job, config.QueueSize),
	}, nil
}

// Register binds a handler to a job name, replacing any previous one
func (s *Scheduler) Register(name string, handler JobHandler, opts ...HandlerOption) {
	reg := registration{handler: handler, maxRetries: s.config.RetryAttempts}
	for _, opt := range opts {
		opt(&reg)
	}
	s.mu.Lock()
	s.handlers[name] = reg
	s.mu.Unlock()
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Job scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Int("queue_size", s.config.QueueSize),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit. Queued jobs
// that have not started are dropped.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.retries.Wait()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Job scheduler stopped gracefully", zap.Int("dropped", len(s.jobs)))
		return nil
	case <-ctx.Done():
		s.logger.Warn("Job scheduler stop timed out")
		return ctx.Err()
	}
}

// Dispatch encodes payload as JSON and queues it for the handler of name.
// It never waits for the job to run.
func (s *Scheduler) Dispatch(ctx context.Context, name string, payload any) error {
	s.mu.RLock()
	reg, ok := s.handlers[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	job := NewJob(name, raw, reg.maxRetries)
	job.RequestID = logger.GetRequestID(ctx)
	if err := s.SubmitJob(job); err != nil {
		return err
	}
	logger.L(ctx).Debug("Job dispatched",
		zap.String("job_id", job.ID.String()),
		zap.String("job", name),
	)
	return nil
}

// SubmitJob queues a prepared job
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

// QueueLength returns the number of jobs waiting for a worker
func (s *Scheduler) QueueLength() int {
	return len(s.jobs)
}

// worker processes jobs from the queue
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	s.mu.RLock()
	reg, ok := s.handlers[job.Name]
	s.mu.RUnlock()

	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job", job.Name),
		zap.Int("attempt", job.RetryCount+1),
	)
	if job.RequestID != "" {
		log = log.With(zap.String("request_id", job.RequestID))
	}
	if !ok {
		log.Error("Job dropped: no handler registered")
		return
	}

	job.Start()
	jobCtx, cancel := context.WithTimeout(logger.WithContext(ctx, log), s.config.JobTimeout)
	defer cancel()
	jobCtx, span := telemetry.StartSpan(jobCtx, "job."+job.Name,
		telemetry.WithAttribute("job.id", job.ID.String()),
		telemetry.WithAttribute("job.attempt", job.RetryCount+1),
	)
	defer span.End()

	err := s.run(jobCtx, reg.handler, job)
	if err == nil {
		job.Complete()
		telemetry.SetOK(span)
		log.Info("Job completed", zap.Duration("duration", job.CompletedAt.Sub(*job.StartedAt)))
		return
	}

	job.Fail(err.Error())
	telemetry.RecordError(span, err)
	log.Error("Job failed", zap.Error(err))

	if job.ShouldRetry() && ctx.Err() == nil {
		job.ScheduleRetry()
		log.Info("Job scheduled for retry",
			zap.Int("retry_count", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Duration("delay", s.config.RetryDelay),
		)
		s.requeueAfter(ctx, job, log)
	}
}

// run calls the handler, converting a panic into an error
func (s *Scheduler) run(ctx context.Context, handler JobHandler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, job.Payload)
}

// requeueAfter puts the job back on the queue once the retry delay passed
func (s *Scheduler) requeueAfter(ctx context.Context, job *Job, log *zap.Logger) {
	s.retries.Add(1)
	go func() {
		defer s.retries.Done()
		timer := time.NewTimer(s.config.RetryDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := s.SubmitJob(job); err != nil {
			log.Warn("Failed to re-queue job for retry", zap.Error(err))
		}
	}()
}

var _ integration.JobDispatcher = (*Scheduler)(nil)
