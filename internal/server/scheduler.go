package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plexsync/internal/shared"
	"github.com/desertthunder/plexsync/internal/tasks"
)

// RunFunc performs one full sync run.
type RunFunc func(ctx context.Context) (*tasks.SyncResult, error)

// RunStatus is a snapshot of the scheduler state.
type RunStatus struct {
	Running    bool
	LastResult *tasks.SyncResult
	LastErr    error
	LastRunAt  time.Time
	Runs       int
}

// Scheduler serialises sync runs started by the interval ticker and by HTTP triggers.
//
// At most one run is active; a run requested while another is active fails with [shared.ErrSyncInProgress].
type Scheduler struct {
	run    RunFunc
	logger *log.Logger

	mu      sync.Mutex
	status  RunStatus
	pending sync.WaitGroup
}

// NewScheduler creates a scheduler around run.
func NewScheduler(run RunFunc, logger *log.Logger) *Scheduler {
	return &Scheduler{run: run, logger: logger}
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Running {
		return false
	}
	s.status.Running = true
	return true
}

func (s *Scheduler) release(result *tasks.SyncResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.LastResult = result
	s.status.LastErr = err
	s.status.LastRunAt = time.Now()
	s.status.Runs++
}

// Status returns a copy of the current state.
func (s *Scheduler) Status() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// RunNow performs a run on the calling goroutine.
func (s *Scheduler) RunNow(ctx context.Context) (*tasks.SyncResult, error) {
	if !s.acquire() {
		return nil, shared.ErrSyncInProgress
	}
	return s.execute(ctx)
}

// Trigger starts a run in the background and returns immediately.
func (s *Scheduler) Trigger(ctx context.Context) error {
	if !s.acquire() {
		return shared.ErrSyncInProgress
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		_, _ = s.execute(ctx)
	}()
	return nil
}

func (s *Scheduler) execute(ctx context.Context) (result *tasks.SyncResult, err error) {
	defer func() { s.release(result, err) }()

	result, err = s.run(ctx)
	switch {
	case err != nil:
		s.logger.Error("sync run failed", "error", err)
	case result != nil:
		s.logger.Info("sync run finished", "summary", result.Summary(), "duration", result.Duration())
	}
	return result, err
}

// Start runs immediately, then every interval until ctx is cancelled.
//
// A tick that lands on an active run is skipped. Start waits for background runs before returning.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	defer s.pending.Wait()

	if _, err := s.RunNow(ctx); err == shared.ErrSyncInProgress {
		s.logger.Warn("skipping scheduled run", "reason", err)
	}
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunNow(ctx); err == shared.ErrSyncInProgress {
				s.logger.Warn("skipping scheduled run", "reason", err)
			}
		}
	}
}

// Wait blocks until every triggered run has finished.
func (s *Scheduler) Wait() {
	s.pending.Wait()
}
