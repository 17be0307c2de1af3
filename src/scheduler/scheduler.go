// Package scheduler runs the Paperless sync periodically.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/username/poolcosts/backend/src/logger"
)

// RunFunc performs one sync.
type RunFunc func(ctx context.Context) error

type Options struct {
	Enabled      bool
	Interval     time.Duration
	RunOnStartup bool
}

// Scheduler triggers RunFunc every Interval. Runs never overlap.
type Scheduler struct {
	opts Options
	run  RunFunc

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	runLock sync.Mutex
	startup sync.WaitGroup
}

func New(opts Options, run RunFunc) *Scheduler {
	if opts.Interval < time.Minute {
		opts.Interval = time.Minute
	}
	return &Scheduler{opts: opts, run: run}
}

// Started reports whether the cron loop is active.
func (s *Scheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Start registers the periodic job. It returns false when the scheduler is disabled
// or already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.Enabled || s.cron != nil {
		return false
	}

	cronLogger := cronLogAdapter{l: logger.L.With("component", "scheduler")}
	c := cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	ctx, cancel := context.WithCancel(context.Background())

	spec := fmt.Sprintf("@every %s", s.opts.Interval)
	if _, err := c.AddFunc(spec, func() { s.RunNow(ctx) }); err != nil {
		logger.L.Error("Scheduler: invalid schedule", "spec", spec, "error", err)
		cancel()
		return false
	}
	c.Start()
	s.cron, s.cancel = c, cancel
	logger.L.Info("Scheduler started", "interval", s.opts.Interval.String(), "runOnStartup", s.opts.RunOnStartup)

	if s.opts.RunOnStartup {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.RunNow(ctx)
		}()
	}
	return true
}

// RunNow runs one sync under the scheduler lock. Errors are logged, not returned.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.runLock.Lock()
	defer s.runLock.Unlock()
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := s.run(ctx); err != nil {
		logger.L.Error("Scheduled sync failed", "error", err, "elapsed", time.Since(start).String())
		return
	}
	logger.L.Info("Scheduled sync finished", "elapsed", time.Since(start).String())
}

// Stop halts the cron loop, cancels a running sync and waits for it until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	cancel()
	cronDone := c.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.startup.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.L.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogAdapter routes cron's logr-style calls to slog.
type cronLogAdapter struct {
	l *slog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.l.Debug("cron: "+msg, keysAndValues...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
