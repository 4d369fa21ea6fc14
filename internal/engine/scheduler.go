package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler centralizes the engine's interval timers so every periodic task
// shares one lifecycle instead of re-implementing ticker and cleanup logic.
// All tasks stop when Stop is called or their parent context is cancelled.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
	next    int
	wg      sync.WaitGroup
	stopped bool
}

// NewScheduler creates an idle Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger.With(slog.String("component", "scheduler")),
		cancels: make(map[int]context.CancelFunc),
	}
}

// Every runs fn at the given interval until the returned stop function is
// called, the scheduler is stopped, or ctx is cancelled. When immediate is
// true fn runs once before the first tick.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, immediate bool, fn func(ctx context.Context)) (stop func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return func() {}
	}
	taskCtx, cancel := context.WithCancel(ctx)
	id := s.next
	s.next++
	s.cancels[id] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, id)
			s.mu.Unlock()
		}()

		s.logger.Debug("task started",
			slog.String("task", name),
			slog.Duration("interval", interval),
		)

		if immediate {
			fn(taskCtx)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-taskCtx.Done():
				s.logger.Debug("task stopped", slog.String("task", name))
				return
			case <-ticker.C:
				fn(taskCtx)
			}
		}
	}()

	return cancel
}

// Stop cancels every scheduled task and waits for them to finish. The
// scheduler accepts no new tasks afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
