// Package refresher re-runs the client bootstrap on a fixed interval so the
// client token issued by the activation endpoint keeps getting refreshed.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/clientboot/internal/bootstrap"
	"git.home.luguber.info/inful/clientboot/internal/logfields"
)

// Runner is the part of bootstrap.Coordinator the refresher drives.
type Runner interface {
	Run(ctx context.Context) bootstrap.Report
}

// Refresher wraps a gocron scheduler running one bootstrap job.
type Refresher struct {
	runner    Runner
	interval  time.Duration
	scheduler gocron.Scheduler
	logger    *slog.Logger

	runs    atomic.Int64
	mu      sync.Mutex
	last    bootstrap.Report
	cancel  context.CancelFunc
	stopped bool
}

// New creates a refresher. Nothing runs until Start.
func New(runner Runner, interval time.Duration, logger *slog.Logger) (*Refresher, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Refresher{runner: runner, interval: interval, scheduler: s, logger: logger}, nil
}

// Start schedules the job, runs it immediately, and starts the scheduler.
// Runs never overlap: a run still busy when the next tick fires causes that
// tick to be skipped.
func (r *Refresher) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.refresh(runCtx) }),
		gocron.WithName("client-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create refresh job: %w", err)
	}
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.logger.Info("Starting refresher", slog.Duration("interval", r.interval))
	r.scheduler.Start()
	return nil
}

// Stop cancels an in-flight run and shuts the scheduler down. Calling it
// again is a no-op.
func (r *Refresher) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.logger.Info("Stopping refresher")
	if err := r.scheduler.Shutdown(); err != nil && !errors.Is(err, gocron.ErrStopSchedulerTimedOut) {
		return fmt.Errorf("refresher shutdown: %w", err)
	}
	return nil
}

// RunCount returns how many bootstrap runs completed.
func (r *Refresher) RunCount() int64 { return r.runs.Load() }

// LastReport returns the report of the most recent completed run.
func (r *Refresher) LastReport() bootstrap.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Refresher) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report := r.runner.Run(ctx)
	n := r.runs.Add(1)
	r.mu.Lock()
	r.last = report
	r.mu.Unlock()
	r.logger.Debug("Refresh run complete",
		slog.Int64("run", n),
		logfields.Outcome(string(report.Outcome)),
		logfields.State(report.FinalState.String()))
}
