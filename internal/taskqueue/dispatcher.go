package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/services"
)

// Handler executes one job kind. Execute runs the work; Rollback restores
// document consistency after the final failed attempt.
type Handler interface {
	Execute(ctx context.Context, job *Job) error
	Rollback(ctx context.Context, job *Job) error
}

// Dispatcher polls the store and runs claimed jobs on a worker pool.
type Dispatcher struct {
	cfg      *config.Config
	store    *Store
	logger   *slog.Logger
	handlers map[string]Handler

	pollInterval time.Duration
	retryDelay   time.Duration
	workers      int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher constructs a dispatcher with no handlers registered.
func NewDispatcher(cfg *config.Config, store *Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := time.Duration(cfg.Workflow.QueuePollSeconds) * time.Second
	if poll <= 0 {
		poll = 2 * time.Second
	}
	delay := time.Duration(cfg.Workflow.RetryDelaySeconds) * time.Second
	if delay < 0 {
		delay = 0
	}
	workers := cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "dispatcher"),
		handlers:     make(map[string]Handler),
		pollInterval: poll,
		retryDelay:   delay,
		workers:      workers,
	}
}

// Register binds a handler to a job kind. Must be called before Start.
func (d *Dispatcher) Register(kind string, handler Handler) {
	d.handlers[kind] = handler
}

// Start begins background processing.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("dispatcher already running")
	}
	if len(d.handlers) == 0 {
		return errors.New("dispatcher handlers not configured")
	}

	reclaimed, err := d.store.ReclaimInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("reclaim interrupted jobs: %w", err)
	}
	if reclaimed > 0 {
		d.logger.Warn("requeued jobs interrupted by a previous shutdown",
			logging.Int64("jobs", reclaimed))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight jobs.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
}

func (d *Dispatcher) runWorker(ctx context.Context, worker int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := d.store.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("claim failed", logging.Error(err))
			d.sleep(ctx)
			continue
		}
		if job == nil {
			d.sleep(ctx)
			continue
		}

		d.process(ctx, job)
	}
}

func (d *Dispatcher) sleep(ctx context.Context) {
	timer := time.NewTimer(d.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (d *Dispatcher) process(ctx context.Context, job *Job) {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithJobKind(jobCtx, job.Kind)
	jobCtx = services.WithProjectID(jobCtx, job.ProjectID)
	logger := logging.WithContext(jobCtx, d.logger)

	handler, ok := d.handlers[job.Kind]
	if !ok {
		logger.Error("no handler for job kind",
			logging.String(logging.FieldEventType, "job_unroutable"))
		if err := d.store.MarkExhausted(jobCtx, job.ID, fmt.Sprintf("no handler for kind %q", job.Kind)); err != nil {
			logger.Error("mark exhausted failed", logging.Error(err))
		}
		return
	}

	logger.Info("job started",
		logging.Int("attempt", job.Attempts),
		logging.Int("max_retries", job.MaxRetries),
		logging.String(logging.FieldEventType, "job_started"))

	execErr := handler.Execute(jobCtx, job)
	if execErr == nil {
		if err := d.store.MarkCompleted(jobCtx, job.ID); err != nil {
			logger.Error("mark completed failed", logging.Error(err))
			return
		}
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_completed"))
		return
	}

	if errors.Is(execErr, context.Canceled) {
		// Leave the job running; ReclaimInterrupted requeues it on the
		// next dispatcher start.
		logger.Warn("job interrupted by shutdown", logging.Error(execErr))
		return
	}

	fatal := services.IsFatal(execErr)
	// The first run does not count against the retry budget.
	exhausted := job.Attempts > job.MaxRetries
	if !fatal && !exhausted {
		retryAt := time.Now().UTC().Add(d.retryDelay)
		if err := d.store.MarkFailed(jobCtx, job.ID, execErr.Error(), retryAt); err != nil {
			logger.Error("mark failed failed", logging.Error(err))
			return
		}
		logger.Warn("job failed, will retry",
			logging.Error(execErr),
			logging.Int("attempt", job.Attempts),
			logging.Duration("retry_in", d.retryDelay),
			logging.String(logging.FieldEventType, "job_retry_scheduled"))
		return
	}

	if err := d.store.MarkExhausted(jobCtx, job.ID, execErr.Error()); err != nil {
		logger.Error("mark exhausted failed", logging.Error(err))
	}
	logger.Error("job exhausted",
		logging.Error(execErr),
		logging.Bool("fatal", fatal),
		logging.Int("attempt", job.Attempts),
		logging.String(logging.FieldEventType, "job_exhausted"))

	if err := handler.Rollback(jobCtx, job); err != nil {
		logger.Error("rollback failed, documents may be inconsistent",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_rollback_failed"))
		return
	}
	logger.Info("rollback applied",
		logging.String(logging.FieldEventType, "job_rolled_back"))
}
