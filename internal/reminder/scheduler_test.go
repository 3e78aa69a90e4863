package reminder

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_FiresAfterDelay(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	fired := make(chan struct{})
	s.Schedule(10*time.Millisecond, "test", func(context.Context) {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}
}

func TestScheduler_CloseCancelsPending(t *testing.T) {
	s := NewScheduler()

	var fired atomic.Bool
	s.Schedule(time.Hour, "pending", func(context.Context) {
		fired.Store(true)
	})

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return")
	}
	if fired.Load() {
		t.Error("pending task fired after close")
	}
}

// Scheduling while Close runs must neither panic the WaitGroup nor leak
// a task past Close. Meaningful under the race detector.
func TestScheduler_ScheduleDuringClose(t *testing.T) {
	s := NewScheduler()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Schedule(time.Hour, "racing", func(context.Context) {})
		}()
	}
	s.Close()
	wg.Wait()
	s.Close()
}

func TestScheduler_RejectsAfterClose(t *testing.T) {
	s := NewScheduler()
	s.Close()

	var fired atomic.Bool
	s.Schedule(0, "late", func(context.Context) {
		fired.Store(true)
	})
	time.Sleep(20 * time.Millisecond)
	if fired.Load() {
		t.Error("task accepted after close")
	}
}
