package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reel/internal/api"
	"reel/internal/config"
	"reel/internal/taskqueue"
)

// Daemon coordinates the dispatcher and the HTTP API and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	service    *api.Service
	dispatcher *taskqueue.Dispatcher
	server     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	ListenAddr   string
	DataDir      string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, service *api.Service, dispatcher *taskqueue.Dispatcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || service == nil || dispatcher == nil || logger == nil {
		return nil, errors.New("daemon requires config, service, dispatcher, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "reeld.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		service:    service,
		dispatcher: dispatcher,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.server = server
	return d, nil
}

// Start acquires the daemon lock and launches the dispatcher and the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reel daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.dispatcher.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start dispatcher: %w", err)
	}
	if d.server != nil {
		if err := d.server.start(d.ctx); err != nil {
			d.dispatcher.Stop()
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	return nil
}

// Stop shuts everything down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.server != nil {
		d.server.stop()
	}
	d.dispatcher.Stop()
	_ = d.lock.Unlock()
	d.running.Store(false)
	d.ctx = nil
	d.cancel = nil
}

// Wait blocks until the run context ends, then stops the daemon.
func (d *Daemon) Wait() {
	if d.ctx == nil {
		return
	}
	<-d.ctx.Done()
	d.Stop()
}

// Status reports current runtime information.
func (d *Daemon) Status() Status {
	addr := ""
	if d.server != nil {
		addr = d.server.addr()
	}
	return Status{
		Running:      d.running.Load(),
		ListenAddr:   addr,
		DataDir:      d.cfg.Paths.DataDir,
		LockFilePath: d.lockPath,
	}
}
