package taskqueue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/taskqueue"
	"reel/internal/testsupport"
)

type scriptedHandler struct {
	mu        sync.Mutex
	failTimes int
	err       error
	executes  int
	rollbacks int
}

func (h *scriptedHandler) Execute(_ context.Context, _ *taskqueue.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.executes++
	if h.executes <= h.failTimes {
		if h.err != nil {
			return h.err
		}
		return services.Wrap(services.ErrTransient, "test", "execute", "injected", nil)
	}
	return nil
}

func (h *scriptedHandler) Rollback(_ context.Context, _ *taskqueue.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rollbacks++
	return nil
}

func (h *scriptedHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.executes, h.rollbacks
}

func waitForStatus(t *testing.T, store *taskqueue.Store, id int64, want taskqueue.Status) *taskqueue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %d never reached status %s", id, want)
	return nil
}

func TestDispatcherCompletesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)

	handler := &scriptedHandler{}
	dispatcher := taskqueue.NewDispatcher(cfg, store, logging.NewNop())
	dispatcher.Register(taskqueue.KindEdit, handler)

	job, err := store.Enqueue(context.Background(), taskqueue.KindEdit, "aa11", nil, 3)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer dispatcher.Stop()

	done := waitForStatus(t, store, job.ID, taskqueue.StatusCompleted)
	if done.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", done.Attempts)
	}
	if executes, rollbacks := handler.counts(); executes != 1 || rollbacks != 0 {
		t.Fatalf("executes=%d rollbacks=%d", executes, rollbacks)
	}
}

func TestDispatcherRetriesThenRollsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)

	handler := &scriptedHandler{failTimes: 10}
	dispatcher := taskqueue.NewDispatcher(cfg, store, logging.NewNop())
	dispatcher.Register(taskqueue.KindEdit, handler)

	job, err := store.Enqueue(context.Background(), taskqueue.KindEdit, "bb22", nil, 3)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer dispatcher.Stop()

	// A budget of 3 retries means the initial run plus three more.
	done := waitForStatus(t, store, job.ID, taskqueue.StatusExhausted)
	if done.Attempts != 4 {
		t.Fatalf("attempts = %d, want 4", done.Attempts)
	}
	executes, rollbacks := handler.counts()
	if executes != 4 {
		t.Fatalf("executes = %d, want 4", executes)
	}
	if rollbacks != 1 {
		t.Fatalf("rollbacks = %d, want 1", rollbacks)
	}
}

func TestDispatcherReclaimsInterruptedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, taskqueue.KindEdit, "dd44", nil, 3)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Claim without finishing, as a crashed worker would.
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil || claimed.ID != job.ID {
		t.Fatalf("Claim: job=%+v err=%v", claimed, err)
	}
	if again, err := store.Claim(ctx); err != nil || again != nil {
		t.Fatalf("running job must not be claimable: job=%+v err=%v", again, err)
	}

	handler := &scriptedHandler{}
	dispatcher := taskqueue.NewDispatcher(cfg, store, logging.NewNop())
	dispatcher.Register(taskqueue.KindEdit, handler)
	if err := dispatcher.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer dispatcher.Stop()

	done := waitForStatus(t, store, job.ID, taskqueue.StatusCompleted)
	if done.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", done.Attempts)
	}
}

func TestDispatcherFatalErrorSkipsRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)

	handler := &scriptedHandler{
		failTimes: 10,
		err:       services.Wrap(services.ErrValidation, "test", "execute", "bad spec", nil),
	}
	dispatcher := taskqueue.NewDispatcher(cfg, store, logging.NewNop())
	dispatcher.Register(taskqueue.KindEdit, handler)

	job, err := store.Enqueue(context.Background(), taskqueue.KindEdit, "cc33", nil, 5)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer dispatcher.Stop()

	done := waitForStatus(t, store, job.ID, taskqueue.StatusExhausted)
	if done.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", done.Attempts)
	}
	if _, rollbacks := handler.counts(); rollbacks != 1 {
		t.Fatalf("rollbacks = %d, want 1", rollbacks)
	}
}

func TestDispatcherRequiresHandlers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)

	dispatcher := taskqueue.NewDispatcher(cfg, store, logging.NewNop())
	if err := dispatcher.Start(context.Background()); err == nil {
		t.Fatal("Start without handlers must fail")
	}
}
