package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRun_AlignsToBoundaryPlusOffset(t *testing.T) {
	s := NewAlignedScheduler("daily", 24*time.Hour, time.Minute)
	now := time.Date(2024, 5, 1, 13, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 1, 0, 0, time.UTC), s.nextRun(now))

	early := time.Date(2024, 5, 1, 0, 0, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 1, 0, 0, time.UTC), s.nextRun(early))

	exact := time.Date(2024, 5, 1, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, exact.Add(24*time.Hour), s.nextRun(exact))
}

func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	s := NewAlignedScheduler("test", 20*time.Millisecond, 0)
	s.RunImmediately = true
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Start(ctx, func(context.Context) {
			if runs.Add(1) >= 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	require.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestStart_InvalidIntervalReturns(t *testing.T) {
	s := NewAlignedScheduler("", 0, 0)
	called := false
	s.Start(context.Background(), func(context.Context) { called = true })
	assert.False(t, called)

	s = NewAlignedScheduler("", time.Hour, 2*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx, func(context.Context) {})
	assert.Equal(t, time.Duration(0), s.Offset)
}

func TestParseCron(t *testing.T) {
	sched, err := ParseCron("5 0 * * *")
	require.NoError(t, err)
	from := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 5, 0, 0, time.UTC), sched.Next(from))

	_, err = ParseCron("@daily")
	assert.NoError(t, err)
	_, err = ParseCron("")
	assert.Error(t, err)
	_, err = ParseCron("every day")
	assert.Error(t, err)
}

func TestCronScheduler_StopsOnCancel(t *testing.T) {
	// @every 的最小粒度是 1s
	s := NewCronScheduler("test", "@every 1s")
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Start(ctx, func(context.Context) {
			runs.Add(1)
			cancel()
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cron scheduler did not stop after cancel")
	}
	assert.Equal(t, int32(1), runs.Load())
}
