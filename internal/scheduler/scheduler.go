// Package scheduler runs the periodic sync and weather tasks. Each task is
// bound to a Guard so a tick that lands while a manual run is in progress
// is skipped instead of overlapping it.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// Task is a periodic job.
type Task struct {
	Name       string
	Interval   time.Duration
	Guard      *Guard
	Run        func(context.Context) error
	RunOnStart bool
}

// Scheduler owns one ticker goroutine per task.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []Task
	log     logger.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates an empty Scheduler.
func New(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Scheduler{log: log.Module("scheduler")}
}

// Add registers a task. Tasks cannot be added while running.
func (s *Scheduler) Add(task Task) error {
	switch {
	case task.Name == "":
		return validationError("task name is required", "name", task.Name)
	case task.Interval <= 0:
		return validationError("task interval must be positive", "interval", task.Interval.String())
	case task.Run == nil:
		return validationError("task function is required", "run", task.Name)
	}
	if task.Guard == nil {
		task.Guard = NewGuard(task.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.Newf("cannot add task %q to a running scheduler", task.Name).
			Component("scheduler").
			Category(errors.CategoryState).
			Build()
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Start launches the task loops. They stop when ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.Newf("scheduler already running").
			Component("scheduler").
			Category(errors.CategoryState).
			Build()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, task := range s.tasks {
		s.log.Info("scheduling task",
			logger.String("task", task.Name),
			logger.Duration("interval", task.Interval),
			logger.Bool("run_on_start", task.RunOnStart))
		s.wg.Go(func() { s.loop(runCtx, task) })
	}
	return nil
}

// Stop cancels the loops and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	if task.RunOnStart {
		s.tick(ctx, task)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, task)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, task Task) {
	if ctx.Err() != nil {
		return
	}
	err := task.Guard.Run(ctx, task.Run)
	switch {
	case err == nil:
	case IsBusy(err):
		s.log.Debug("skipping tick, run already in progress", logger.String("task", task.Name))
	case ctx.Err() != nil:
		s.log.Info("task interrupted by shutdown", logger.String("task", task.Name))
	default:
		s.log.Warn("scheduled task failed",
			logger.String("task", task.Name),
			logger.Error(err))
	}
}

func validationError(message, field, value string) error {
	return errors.Newf("%s", message).
		Component("scheduler").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}
