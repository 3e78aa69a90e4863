// Package reminder schedules delayed fire-and-forget side effects, such as
// the post-order delivery reminder.
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Alex-Men-VL/sell-pizza/internal/logger"
)

// Scheduler runs delayed tasks detached from the lifetime of the request
// that scheduled them.
type Scheduler struct {
	stop chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewScheduler constructs a running scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{stop: make(chan struct{})}
}

// Schedule runs fn after delay. The task survives the triggering request;
// it is skipped if the scheduler shuts down first.
func (s *Scheduler) Schedule(delay time.Duration, name string, fn func(ctx context.Context)) {
	// The closed check and the Add must be one step, or a task racing
	// Close could Add after Wait has started.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.stop:
			logger.Debug(context.Background(), "reminder", "task.cancelled",
				slog.String("task", name),
			)
			return
		case <-timer.C:
		}

		start := time.Now()
		fn(context.Background())
		logger.Debug(context.Background(), "reminder", "task.fired",
			slog.String("task", name),
			slog.Duration("duration", logger.Took(start)),
		)
	}()
}

// Close stops accepting tasks and waits for in-flight goroutines to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
