package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/birdweather-sync/internal/errors"
)

// ErrBusy is returned when a run of the same domain is already in progress.
var ErrBusy = errors.NewStd("run already in progress")

// Outcome records the most recent finished run of a domain.
type Outcome struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Runs       int64         `json:"runs"`
}

// Guard allows at most one run of a domain at a time. A second caller is
// rejected with ErrBusy instead of queueing. The scheduler and the HTTP
// triggers share one Guard per domain.
type Guard struct {
	name    string
	mu      sync.Mutex
	running atomic.Bool
	now     func() time.Time

	lastMu sync.RWMutex
	last   Outcome
}

// NewGuard creates a Guard for the named domain.
func NewGuard(name string) *Guard {
	return &Guard{name: name, now: time.Now}
}

// Name returns the guarded domain.
func (g *Guard) Name() string {
	return g.name
}

// Run executes fn unless another run holds the guard.
func (g *Guard) Run(ctx context.Context, fn func(context.Context) error) error {
	if !g.mu.TryLock() {
		return errors.New(ErrBusy).
			Component("scheduler").
			Category(errors.CategoryConflict).
			Context("domain", g.name).
			Build()
	}
	defer g.mu.Unlock()

	g.running.Store(true)
	defer g.running.Store(false)

	start := g.now()
	err := fn(ctx)
	finished := g.now()

	g.lastMu.Lock()
	g.last.StartedAt = start
	g.last.FinishedAt = finished
	g.last.Duration = finished.Sub(start)
	g.last.Error = ""
	if err != nil {
		g.last.Error = err.Error()
	}
	g.last.Runs++
	g.lastMu.Unlock()

	return err
}

// Running reports whether a run currently holds the guard.
func (g *Guard) Running() bool {
	return g.running.Load()
}

// Last returns the most recent outcome. ok is false before the first run.
func (g *Guard) Last() (out Outcome, ok bool) {
	g.lastMu.RLock()
	defer g.lastMu.RUnlock()
	return g.last, g.last.Runs > 0
}

// IsBusy reports whether err is a rejected overlapping run.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
