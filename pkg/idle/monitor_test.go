package idle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type observed struct {
	offset time.Duration
	at     *time.Time
}

type staticSource struct {
	mutex    sync.Mutex
	activity *Activity
	err      error
	calls    int
}

func (this *staticSource) LastActivity(_ context.Context, _ chat.Id, _ int64, minAt time.Time) (*Activity, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.calls++
	if this.err != nil {
		return nil, this.err
	}
	if this.activity == nil || this.activity.At.Before(minAt) {
		return nil, nil
	}
	v := *this.activity
	return &v, nil
}

func (this *staticSource) set(v *Activity) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.activity = v
}

func runMonitor(ctx context.Context, m *Monitor, at func() time.Time) (<-chan struct{}, func() ([]observed, error)) {
	done := make(chan struct{})
	var mutex sync.Mutex
	var result []observed
	var failure error
	go func() {
		defer close(done)
		for v, err := range m.Watch(ctx) {
			mutex.Lock()
			if err != nil {
				failure = err
			} else {
				result = append(result, observed{at().Sub(epoch), v})
			}
			mutex.Unlock()
		}
	}()
	return done, func() ([]observed, error) {
		mutex.Lock()
		defer mutex.Unlock()
		return result, failure
	}
}

func TestMonitor_Watch_countdownWithoutActivity(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clocks, fc := clock.NewFakeClocks(epoch)
	m := &Monitor{
		ChatId:  "a",
		Options: Options{IdleTimeout: 10 * time.Second, IdleTimeoutBeforeCountdown: 3 * time.Second, CheckInterval: time.Second},
		Source:  &staticSource{},
		Clocks:  clocks,
	}
	done, results := runMonitor(ctx, m, fc.Now)

	for i := 0; i < 10; i++ {
		require.NoError(t, fc.BlockUntilContext(ctx, 1))
		fc.Advance(time.Second)
	}
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("monitor did not become idle")
	}

	actual, err := results()
	require.NoError(t, err)
	require.Len(t, actual, 8)
	assert.Equal(t, time.Duration(0), actual[0].offset)
	assert.Nil(t, actual[0].at)
	idleAt := epoch.Add(10 * time.Second)
	for i, v := range actual[1:] {
		assert.Equal(t, time.Duration(i+3)*time.Second, v.offset)
		require.NotNil(t, v.at)
		assert.Equal(t, idleAt, *v.at)
	}
}

func TestMonitor_Watch_activityPostponesCountdown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clocks, fc := clock.NewFakeClocks(epoch)
	source := &staticSource{}
	m := &Monitor{
		ChatId:  "a",
		Options: Options{IdleTimeout: 10 * time.Second, IdleTimeoutBeforeCountdown: 3 * time.Second, CheckInterval: time.Second},
		Source:  source,
		Clocks:  clocks,
	}
	source.set(&Activity{At: epoch.Add(2 * time.Second), Cursor: 7})
	done, results := runMonitor(ctx, m, fc.Now)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(3 * time.Second)
	// Countdown starts 3s after the activity, at t=5s.
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(2 * time.Second)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	cancel()
	<-done

	actual, err := results()
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, actual, 3)
	assert.Nil(t, actual[0].at)
	assert.Equal(t, 3*time.Second, actual[1].offset)
	assert.Nil(t, actual[1].at)
	assert.Equal(t, 5*time.Second, actual[2].offset)
	require.NotNil(t, actual[2].at)
	assert.Equal(t, epoch.Add(12*time.Second), *actual[2].at)
}

func TestMonitor_Watch_sourceFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clocks, fc := clock.NewFakeClocks(epoch)
	expected := errors.New("expected")
	m := &Monitor{
		ChatId:  "a",
		Options: Options{IdleTimeout: 10 * time.Second, IdleTimeoutBeforeCountdown: 3 * time.Second, CheckInterval: time.Second},
		Source:  &staticSource{err: expected},
		Clocks:  clocks,
	}
	done, results := runMonitor(ctx, m, fc.Now)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(3 * time.Second)
	<-done

	_, err := results()
	assert.ErrorIs(t, err, expected)
}

func TestMonitor_Watch_illegalOptions(t *testing.T) {
	m := &Monitor{
		ChatId:  "a",
		Options: Options{IdleTimeout: time.Second, IdleTimeoutBeforeCountdown: 3 * time.Second, CheckInterval: time.Second},
		Source:  &staticSource{},
		Clocks:  clock.NewClocks(),
	}
	var errs []error
	for _, err := range m.Watch(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
}

func TestCountdownAtEnd(t *testing.T) {
	actual := CountdownAtEnd(time.Minute, 10*time.Second)
	assert.Equal(t, 51*time.Second, actual.IdleTimeoutBeforeCountdown)
	assert.NoError(t, actual.Validate())

	actual = CountdownAtEnd(time.Second, time.Second)
	assert.Equal(t, time.Second, actual.IdleTimeoutBeforeCountdown)
	assert.NoError(t, actual.Validate())
}
