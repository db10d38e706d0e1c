package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TaskFunc is the work a scheduled task performs.
type TaskFunc func(ctx context.Context) error

type task struct {
	name    string
	trigger Trigger
	run     TaskFunc
	enabled bool
	lastRun time.Time
}

// Scheduler fires named tasks on their triggers from a single background
// loop. The same loop drives the retry sweep, so pending retries are
// checked at the poll cadence without a second timer.
type Scheduler struct {
	pollInterval time.Duration
	sweep        func(ctx context.Context)
	log          *slog.Logger

	mu    sync.Mutex
	tasks map[string]*task
	order []string

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates a scheduler. sweep runs at the end of every tick
// and may be nil.
func NewScheduler(pollInterval time.Duration, sweep func(ctx context.Context)) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Scheduler{
		pollInterval: pollInterval,
		sweep:        sweep,
		log:          slog.Default().With("component", "scheduler"),
		tasks:        make(map[string]*task),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// AddTask registers a named task. Re-adding a name replaces the previous
// definition and resets its last-run stamp.
func (s *Scheduler) AddTask(name string, trigger Trigger, run TaskFunc, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; !exists {
		s.order = append(s.order, name)
	}
	s.tasks[name] = &task{name: name, trigger: trigger, run: run, enabled: enabled}
	s.log.Info("Task registered", "task", name, "trigger", trigger.String(), "enabled", enabled)
}

// Start runs the scheduler loop until Stop is called or ctx is cancelled.
// It returns an error if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}
	defer s.running.Store(false)
	defer close(s.done)

	s.log.Info("Scheduler started", "poll_interval", s.pollInterval)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped", "reason", "context cancelled")
			return nil
		case <-s.stop:
			s.log.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.dispatch(ctx, time.Now())
		}
	}
}

// Stop signals the loop to exit and waits for the current iteration to
// finish. Tasks already past their trigger minute will not fire again.
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler did not stop in time: %w", ctx.Err())
	}
}

// RunTaskNow synchronously invokes a task outside its schedule, regardless
// of trigger or enabled state. The run is stamped like a scheduled one.
func (s *Scheduler) RunTaskNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	s.runTask(ctx, t, time.Now())
	return nil
}

// dispatch runs every task due at now, in registration order, then the
// retry sweep.
func (s *Scheduler) dispatch(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []*task
	for _, name := range s.order {
		t := s.tasks[name]
		if t.enabled && t.trigger.shouldRun(now, t.lastRun) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		s.runTask(ctx, t, now)
	}

	if s.sweep != nil {
		s.sweep(ctx)
	}
}

// runTask invokes one task, catching panics so a bad task never kills the
// loop. The tick that attempted the task is stamped as its last run whether
// or not the attempt succeeded, which is what keeps daily tasks at most
// once per day.
func (s *Scheduler) runTask(ctx context.Context, t *task, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Task panicked", "task", t.name, "panic", r)
		}
		s.mu.Lock()
		t.lastRun = now
		s.mu.Unlock()
	}()

	s.log.Info("Running task", "task", t.name)
	start := time.Now()
	if err := t.run(ctx); err != nil {
		s.log.Error("Task failed", "task", t.name, "error", err)
		return
	}
	s.log.Info("Task finished", "task", t.name, "duration", time.Since(start))
}
