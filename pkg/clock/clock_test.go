package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleep_returnsAfterAdvance(t *testing.T) {
	clocks, fc := NewFakeClocks(time.Unix(1000, 0))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Sleep(ctx, clocks.Cpu, time.Second) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Second)

	assert.NoError(t, <-done)
}

func TestSleep_cancelled(t *testing.T) {
	clocks, _ := NewFakeClocks(time.Unix(1000, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Sleep(ctx, clocks.Cpu, time.Hour), context.Canceled)
}

func TestSleep_zeroDuration(t *testing.T) {
	clocks, _ := NewFakeClocks(time.Unix(1000, 0))

	assert.NoError(t, Sleep(context.Background(), clocks.Cpu, 0))
	assert.NoError(t, Sleep(context.Background(), clocks.Cpu, -time.Second))
}

func TestMaxMinPositive(t *testing.T) {
	a := time.Unix(1, 0)
	b := time.Unix(2, 0)

	assert.Equal(t, b, Max(a, b))
	assert.Equal(t, a, Min(a, b))
	assert.Equal(t, time.Duration(0), Positive(-time.Second))
	assert.Equal(t, time.Second, Positive(time.Second))
}
