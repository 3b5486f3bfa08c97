package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGuard_RejectsOverlappingRun(t *testing.T) {
	g := NewGuard("sync")
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- g.Run(t.Context(), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	assert.True(t, g.Running())
	err := g.Run(t.Context(), func(context.Context) error {
		t.Fatal("overlapping run must not execute")
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsBusy(err))
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, g.Running())

	// Free again once the first run returned
	require.NoError(t, g.Run(t.Context(), func(context.Context) error { return nil }))
}

func TestGuard_RecordsLastOutcome(t *testing.T) {
	g := NewGuard("weather")
	_, ok := g.Last()
	assert.False(t, ok)

	boom := errors.NewStd("boom")
	err := g.Run(t.Context(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	last, ok := g.Last()
	require.True(t, ok)
	assert.Equal(t, "boom", last.Error)
	assert.Equal(t, int64(1), last.Runs)

	require.NoError(t, g.Run(t.Context(), func(context.Context) error { return nil }))
	last, _ = g.Last()
	assert.Empty(t, last.Error)
	assert.Equal(t, int64(2), last.Runs)
}

func TestScheduler_AddValidates(t *testing.T) {
	s := New(logger.NewNopLogger())
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Add(Task{Interval: time.Second, Run: noop}))
	assert.Error(t, s.Add(Task{Name: "sync", Run: noop}))
	assert.Error(t, s.Add(Task{Name: "sync", Interval: time.Second}))
	assert.NoError(t, s.Add(Task{Name: "sync", Interval: time.Second, Run: noop}))
}

func TestScheduler_RunsTasksPeriodically(t *testing.T) {
	s := New(logger.NewNopLogger())
	var runs atomic.Int32
	require.NoError(t, s.Add(Task{
		Name:     "sync",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	require.NoError(t, s.Start(t.Context()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_RunOnStart(t *testing.T) {
	s := New(logger.NewNopLogger())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add(Task{
		Name:       "weather",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))

	require.NoError(t, s.Start(t.Context()))
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run on start")
	}
}

func TestScheduler_SkipsTickWhileGuardHeld(t *testing.T) {
	guard := NewGuard("sync")
	var runs atomic.Int32

	s := New(logger.NewNopLogger())
	require.NoError(t, s.Add(Task{
		Name:     "sync",
		Interval: 5 * time.Millisecond,
		Guard:    guard,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- guard.Run(t.Context(), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	require.NoError(t, s.Start(t.Context()))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, runs.Load(), "ticks must be skipped while a manual run holds the guard")

	close(release)
	require.NoError(t, <-done)
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
}

func TestScheduler_StopCancelsInFlightRun(t *testing.T) {
	s := New(logger.NewNopLogger())
	started := make(chan struct{})
	var sawCancel atomic.Bool
	require.NoError(t, s.Add(Task{
		Name:       "sync",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			sawCancel.Store(true)
			return ctx.Err()
		},
	}))

	require.NoError(t, s.Start(t.Context()))
	<-started
	s.Stop()

	assert.True(t, sawCancel.Load())
}

func TestScheduler_StartTwiceFails(t *testing.T) {
	s := New(logger.NewNopLogger())
	require.NoError(t, s.Start(t.Context()))
	defer s.Stop()

	err := s.Start(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.Error(t, s.Add(Task{Name: "late", Interval: time.Second, Run: func(context.Context) error { return nil }}))
}
