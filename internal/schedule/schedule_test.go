package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidExpression(t *testing.T) {
	_, err := New("every tuesday-ish", func(context.Context) error { return nil })
	require.Error(t, err)

	_, err = New("*/5 * * * *", nil)
	require.Error(t, err)
}

func TestNext(t *testing.T) {
	s, err := New("*/5 * * * *", func(context.Context) error { return nil })
	require.NoError(t, err)

	ref := time.Date(2024, 3, 1, 12, 2, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC), s.Next(ref))
}

func TestTickReturnsJobError(t *testing.T) {
	boom := errors.New("sheet unreachable")
	s, err := New("@hourly", func(context.Context) error { return boom })
	require.NoError(t, err)

	shared, err := s.Tick(context.Background())
	assert.False(t, shared)
	assert.ErrorIs(t, err, boom)
}

func TestOverlappingTicksShareOneRun(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	s, err := New("@hourly", func(context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 3)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.Tick(context.Background())
	}()
	<-started

	for i := 1; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.Tick(context.Background())
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []bool{true, true, true}, results)
}

func TestRunTicksUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1s", func(context.Context) error {
		calls.Add(1)
		return nil
	}, WithRunOnStart())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunWaitsForInFlightTick(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	s, err := New("@hourly", func(context.Context) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	}, WithRunOnStart())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-started
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a tick was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
		assert.True(t, finished.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
