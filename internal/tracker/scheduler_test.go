package tracker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/groupwatch/pkg/logger"
)

func startLoop(t *testing.T) (*EventLoop, context.CancelFunc) {
	t.Helper()
	loop := NewEventLoop(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop, cancel
}

func TestEventLoop_PostRunsInOrder(t *testing.T) {
	loop, _ := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}

	var snapshot []int
	require.NoError(t, loop.Do(context.Background(), func() {
		snapshot = append(snapshot, got...)
	}))

	require.Len(t, snapshot, 100)
	for i, v := range snapshot {
		assert.Equal(t, i, v)
	}
}

func TestEventLoop_RecoversFromPanic(t *testing.T) {
	loop, _ := startLoop(t)

	loop.Post(func() { panic("boom") })

	ran := false
	require.NoError(t, loop.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestEventLoop_AfterCancelled(t *testing.T) {
	loop, _ := startLoop(t)

	var fired atomic.Bool
	cancel := loop.After(20*time.Millisecond, func() { fired.Store(true) })
	cancel()
	cancel()

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, loop.Do(context.Background(), func() {}))
	assert.False(t, fired.Load())

	done := make(chan struct{})
	loop.After(10*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestEventLoop_Every(t *testing.T) {
	loop, _ := startLoop(t)

	var ticks atomic.Int32
	cancel := loop.Every(5*time.Millisecond, func() { ticks.Add(1) })

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, loop.Do(context.Background(), func() {}))
	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, loop.Do(context.Background(), func() {}))
	assert.Equal(t, after, ticks.Load())
}

func TestEventLoop_ShutdownCancelsJobs(t *testing.T) {
	loop := NewEventLoop(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	stopped := make(chan struct{})
	loop.Go(func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})

	cancel()
	<-loop.Done()

	select {
	case <-stopped:
	default:
		t.Fatal("job was not cancelled before Run returned")
	}

	err := loop.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, context.Canceled)
}
