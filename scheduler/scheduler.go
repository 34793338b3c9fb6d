// Package scheduler runs named housekeeping jobs on fixed intervals.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one run of a periodic task. ctx is cancelled when the job is
// removed or the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler owns a set of periodic jobs, each in its own goroutine.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]context.CancelFunc
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates an empty Scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]context.CancelFunc),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Every runs job each interval until removed or stopped. A job registered
// under an existing name replaces it. Errors and panics are logged and the
// job keeps its schedule.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if stop, ok := s.jobs[name]; ok {
		stop()
	}
	jobCtx, stop := context.WithCancel(s.ctx)
	s.jobs[name] = stop

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(jobCtx, name, job)
			case <-jobCtx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler job registered", zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler job panicked", zap.String("job", name), zap.Any("recover", r))
		}
	}()
	if err := job(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("scheduler job failed", zap.String("job", name), zap.Error(err))
	}
}

// Remove stops the named job. Unknown names are ignored.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.jobs[name]; ok {
		stop()
		delete(s.jobs, name)
	}
}

// Stop cancels every job and waits for in-flight runs to return.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.jobs = make(map[string]context.CancelFunc)
	s.mu.Unlock()
	s.wg.Wait()
}

// Jobs returns the registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
