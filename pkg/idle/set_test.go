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

type signalRecorder struct {
	mutex   sync.Mutex
	signals map[chat.Id][]Signal
	idle    chan chat.Id
}

func newSignalRecorder() *signalRecorder {
	return &signalRecorder{
		signals: map[chat.Id][]Signal{},
		idle:    make(chan chat.Id, 10),
	}
}

func (this *signalRecorder) callback(_ context.Context, chatId chat.Id, signal Signal) {
	this.mutex.Lock()
	this.signals[chatId] = append(this.signals[chatId], signal)
	this.mutex.Unlock()
	if signal.IsIdle {
		this.idle <- chatId
	}
}

func (this *signalRecorder) of(chatId chat.Id) []Signal {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return append([]Signal{}, this.signals[chatId]...)
}

func TestSet_Update(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clocks, fc := clock.NewFakeClocks(epoch)
	recorder := newSignalRecorder()
	instance := &Set{
		Name:     "test",
		Options:  Options{IdleTimeout: 10 * time.Second, IdleTimeoutBeforeCountdown: 3 * time.Second, CheckInterval: time.Second},
		Source:   &staticSource{},
		Clocks:   clocks,
		Callback: recorder.callback,
	}
	defer func() { assert.NoError(t, instance.Close()) }()

	require.NoError(t, instance.Update(ctx, chat.Ids{"a", "b"}))
	assert.Equal(t, chat.Ids{"a", "b"}, instance.Running())
	require.NoError(t, fc.BlockUntilContext(ctx, 2))

	require.NoError(t, instance.Update(ctx, chat.Ids{"b", "c"}))
	assert.Equal(t, chat.Ids{"b", "c"}, instance.Running())
	require.NoError(t, fc.BlockUntilContext(ctx, 2))

	for i := 0; i < 10; i++ {
		require.NoError(t, fc.BlockUntilContext(ctx, 2))
		fc.Advance(time.Second)
	}

	select {
	case id := <-recorder.idle:
		assert.Contains(t, chat.Ids{"b", "c"}, id)
	case <-ctx.Done():
		t.Fatal("no monitor became idle")
	}

	assert.Len(t, recorder.of("a"), 1)
	b := recorder.of("b")
	require.NotEmpty(t, b)
	assert.Equal(t, Signal{}, b[0])
}

func TestSet_Update_keepsExistingMonitors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clocks, fc := clock.NewFakeClocks(epoch)
	recorder := newSignalRecorder()
	instance := &Set{
		Name:     "test",
		Options:  Options{IdleTimeout: 10 * time.Second, IdleTimeoutBeforeCountdown: 3 * time.Second, CheckInterval: time.Second},
		Source:   &staticSource{},
		Clocks:   clocks,
		Callback: recorder.callback,
	}
	defer func() { assert.NoError(t, instance.Close()) }()

	require.NoError(t, instance.Update(ctx, chat.Ids{"a"}))
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	require.NoError(t, instance.Update(ctx, chat.Ids{"a"}))
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	assert.Equal(t, []Signal{{}}, recorder.of("a"))
}

func TestSet_Update_restartsIdleMonitors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clocks, fc := clock.NewFakeClocks(epoch)
	recorder := newSignalRecorder()
	instance := &Set{
		Name:     "test",
		Options:  Options{IdleTimeout: 3 * time.Second, IdleTimeoutBeforeCountdown: 2 * time.Second, CheckInterval: time.Second},
		Source:   &staticSource{},
		Clocks:   clocks,
		Callback: recorder.callback,
	}
	defer func() { assert.NoError(t, instance.Close()) }()

	require.NoError(t, instance.Update(ctx, chat.Ids{"a"}))
	for i := 0; i < 3; i++ {
		require.NoError(t, fc.BlockUntilContext(ctx, 1))
		fc.Advance(time.Second)
	}
	select {
	case id := <-recorder.idle:
		assert.Equal(t, chat.Id("a"), id)
	case <-ctx.Done():
		t.Fatal("monitor did not become idle")
	}
	before := len(recorder.of("a"))

	require.Eventually(t, func() bool {
		assert.NoError(t, instance.Update(ctx, chat.Ids{"a"}))
		return len(recorder.of("a")) > before
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, Signal{}, recorder.of("a")[before])
	assert.Equal(t, chat.Ids{"a"}, instance.Running())
}

func TestSet_Update_reportsFailedMonitors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	expectedErr := errors.New("expected")
	instance := &Set{
		Name:    "test",
		Options: Options{IdleTimeout: time.Second, IdleTimeoutBeforeCountdown: 10 * time.Millisecond, CheckInterval: 10 * time.Millisecond},
		Source:  &staticSource{err: expectedErr},
		Clocks:  clock.NewClocks(),
	}
	defer func() { _ = instance.Close() }()

	require.NoError(t, instance.Update(ctx, chat.Ids{"a"}))
	require.Eventually(t, func() bool {
		return errors.Is(instance.Update(ctx, chat.Ids{"a"}), expectedErr)
	}, 5*time.Second, 10*time.Millisecond)
}
