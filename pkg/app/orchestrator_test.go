package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

func givenOrchestrator(ops ...Operation) *Orchestrator {
	return &Orchestrator{
		Operations:    ops,
		Enabled:       &observable.Latch{},
		RetryMinDelay: time.Millisecond,
		RetryMaxDelay: 2 * time.Millisecond,
	}
}

func TestOrchestrator_restartsFailedOperationsIsolated(t *testing.T) {
	var failingRuns, stableRuns atomic.Int32
	failing := Operation{Name: "failing", Run: func(ctx context.Context) error {
		if failingRuns.Add(1) < 3 {
			return errors.New("boom")
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	stable := Operation{Name: "stable", Run: func(ctx context.Context) error {
		stableRuns.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}}
	instance := givenOrchestrator(failing, stable)

	var mutex sync.Mutex
	var reported []string
	instance.OnError = func(operation string, err error) {
		mutex.Lock()
		defer mutex.Unlock()
		reported = append(reported, operation+": "+err.Error())
	}
	instance.Enabled.Set()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- instance.Run(ctx) }()

	assert.Eventually(t, func() bool { return failingRuns.Load() == 3 }, 5*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, int32(1), stableRuns.Load())
	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, []string{"failing: boom", "failing: boom"}, reported)
}

func TestOrchestrator_awaitsEnabled(t *testing.T) {
	var runs atomic.Int32
	instance := givenOrchestrator(Operation{Name: "op", Run: func(ctx context.Context) error {
		runs.Add(1)
		<-ctx.Done()
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- instance.Run(ctx) }()

	assert.Never(t, func() bool { return runs.Load() > 0 }, 50*time.Millisecond, time.Millisecond)
	instance.Enabled.Set()
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestOrchestrator_restartsEndedAndPanickingOperations(t *testing.T) {
	var runs atomic.Int32
	var errs []error
	var mutex sync.Mutex
	instance := givenOrchestrator(Operation{Name: "op", Run: func(ctx context.Context) error {
		switch runs.Add(1) {
		case 1:
			return nil
		case 2:
			panic("unexpected")
		default:
			<-ctx.Done()
			return ctx.Err()
		}
	}})
	instance.OnError = func(_ string, err error) {
		mutex.Lock()
		defer mutex.Unlock()
		errs = append(errs, err)
	}
	instance.Enabled.Set()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- instance.Run(ctx) }()

	assert.Eventually(t, func() bool { return runs.Load() == 3 }, 5*time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	mutex.Lock()
	defer mutex.Unlock()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrOperationEnded)
	assert.EqualError(t, errs[1], "operation op panicked: unexpected")
}

func TestOrchestrator_retryDelaysFollowClock(t *testing.T) {
	clocks, fc := clock.NewFakeClocks(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	var runs atomic.Int32
	instance := &Orchestrator{
		Clocks: clocks,
		Operations: []Operation{{Name: "op", Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("boom")
		}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- instance.Run(ctx) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), runs.Load())

	fc.Advance(DefaultRetryMaxDelay)
	assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
