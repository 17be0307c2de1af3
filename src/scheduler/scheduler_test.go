package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledSchedulerDoesNotStart(t *testing.T) {
	var runs atomic.Int32
	s := New(Options{Enabled: false, Interval: 360 * time.Minute, RunOnStartup: true}, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	assert.False(t, s.Start())
	assert.False(t, s.Started())
	assert.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, runs.Load())
}

func TestEnabledSchedulerStartsOnceAndStops(t *testing.T) {
	var runs atomic.Int32
	s := New(Options{Enabled: true, Interval: 9999 * time.Minute}, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	require.True(t, s.Start())
	assert.True(t, s.Started())
	assert.False(t, s.Start(), "second start is refused")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.Started())
	assert.Zero(t, runs.Load())
}

func TestRunOnStartupExecutesOnce(t *testing.T) {
	ran := make(chan struct{}, 4)
	s := New(Options{Enabled: true, Interval: 9999 * time.Minute, RunOnStartup: true}, func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	require.True(t, s.Start())

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("startup run did not happen")
	}
	require.NoError(t, s.Stop(context.Background()))
	assert.Len(t, ran, 0)
}

func TestRunNowSwallowsErrors(t *testing.T) {
	var runs atomic.Int32
	s := New(Options{Enabled: true}, func(context.Context) error {
		runs.Add(1)
		return errors.New("paperless unreachable")
	})
	s.RunNow(context.Background())
	s.RunNow(context.Background())
	assert.Equal(t, int32(2), runs.Load())
}

func TestStopWaitsForRunningSync(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool
	s := New(Options{Enabled: true, Interval: 9999 * time.Minute, RunOnStartup: true}, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	require.True(t, s.Start())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, cancelled.Load())
}

func TestIntervalHasOneMinuteFloor(t *testing.T) {
	s := New(Options{Interval: time.Second}, func(context.Context) error { return nil })
	assert.Equal(t, time.Minute, s.opts.Interval)
}
