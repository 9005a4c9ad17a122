package facade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/chat-audio/pkg/indicator"
	"github.com/blaubaer/chat-audio/pkg/observable"
	"github.com/blaubaer/chat-audio/pkg/recording"
)

type fakeIndicator struct {
	mutex    sync.Mutex
	statuses []indicator.Status
	fail     error
}

func (this *fakeIndicator) Ensure(_ context.Context, status indicator.Status) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	if this.fail != nil {
		return this.fail
	}
	if n := len(this.statuses); n == 0 || this.statuses[n-1] != status {
		this.statuses = append(this.statuses, status)
	}
	return nil
}

func (this *fakeIndicator) Dispose() error {
	return nil
}

func (this *fakeIndicator) GetType() indicator.Type {
	return indicator.TypeHue
}

func (this *fakeIndicator) recorded() []indicator.Status {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return append([]indicator.Status{}, this.statuses...)
}

func TestFacade_Run(t *testing.T) {
	fake := &fakeIndicator{}
	instance := &Facade{Indicator: fake}
	recorder := observable.New(recording.RecorderState{}, recording.RecorderState.Equal)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- instance.Run(ctx, recorder) }()

	off := indicator.Status{State: indicator.StateOff}
	on := indicator.Status{State: indicator.StateOn, ChatId: "a"}

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]indicator.Status{off}, fake.recorded())
	}, time.Second, time.Millisecond)

	recorder.Set(recording.RecorderState{ChatId: "a"})
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]indicator.Status{off, on}, fake.recorded())
	}, time.Second, time.Millisecond)

	recorder.Set(recording.RecorderState{ChatId: "a", Error: errors.New("device gone")})
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]indicator.Status{off, on, off}, fake.recorded())
	}, time.Second, time.Millisecond)

	recorder.Set(recording.RecorderState{ChatId: "a"})
	assert.Eventually(t, func() bool {
		return len(fake.recorded()) == 4
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []indicator.Status{off, on, off, on, off}, fake.recorded())
}

func TestFacade_Run_failure(t *testing.T) {
	fake := &fakeIndicator{fail: errors.New("bridge unreachable")}
	instance := &Facade{Indicator: fake}
	recorder := observable.New(recording.RecorderState{}, recording.RecorderState.Equal)

	err := instance.Run(context.Background(), recorder)

	assert.ErrorIs(t, err, fake.fail)
}

func TestFacade_none(t *testing.T) {
	instance := &Facade{}
	conf := NewConfiguration()
	require.NoError(t, instance.Initialize(context.Background(), &conf, nil))

	assert.Equal(t, indicator.TypeNone, instance.GetType())
	assert.NoError(t, instance.Ensure(context.Background(), indicator.Status{State: indicator.StateOn}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, instance.Run(ctx, observable.New(recording.RecorderState{}, recording.RecorderState.Equal)), context.DeadlineExceeded)
	assert.NoError(t, instance.Dispose())
}
