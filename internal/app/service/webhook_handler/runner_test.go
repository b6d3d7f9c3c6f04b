package webhook_handler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunner_DrainsOnStop(t *testing.T) {
	r := newRunner(2, 16, time.Second, zap.NewNop().Sugar())
	r.Start()

	var done atomic.Int32
	for range 10 {
		require.NoError(t, r.Submit("job", func(context.Context) {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
		}))
	}
	require.NoError(t, r.Stop(context.Background()))
	require.EqualValues(t, 10, done.Load())

	require.ErrorIs(t, r.Submit("late", func(context.Context) {}), ErrStopped)
}

func TestRunner_Saturation(t *testing.T) {
	r := newRunner(1, 2, time.Second, zap.NewNop().Sugar())
	noop := func(context.Context) {}

	require.NoError(t, r.Submit("a", noop))
	require.NoError(t, r.Submit("b", noop))
	require.ErrorIs(t, r.Submit("c", noop), ErrSaturated)

	r.Start()
	require.NoError(t, r.Stop(context.Background()))
}

func TestRunner_SurvivesPanics(t *testing.T) {
	r := newRunner(1, 4, time.Second, zap.NewNop().Sugar())
	r.Start()

	var ran atomic.Bool
	require.NoError(t, r.Submit("boom", func(context.Context) { panic("boom") }))
	require.NoError(t, r.Submit("after", func(context.Context) { ran.Store(true) }))
	require.NoError(t, r.Stop(context.Background()))
	require.True(t, ran.Load())
}

func TestRunner_JobTimeout(t *testing.T) {
	r := newRunner(1, 1, 20*time.Millisecond, zap.NewNop().Sugar())
	r.Start()

	var err atomic.Value
	require.NoError(t, r.Submit("slow", func(ctx context.Context) {
		<-ctx.Done()
		err.Store(ctx.Err())
	}))
	require.NoError(t, r.Stop(context.Background()))
	require.ErrorIs(t, err.Load().(error), context.DeadlineExceeded)
}
