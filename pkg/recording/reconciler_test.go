package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/chat-audio/pkg/activechats"
	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/chat/memory"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/gate"
	"github.com/blaubaer/chat-audio/pkg/idle"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeRecorder struct {
	mutex    sync.Mutex
	state    *observable.State[RecorderState]
	calls    []string
	startErr error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{state: observable.New(RecorderState{}, RecorderState.Equal)}
}

func (this *fakeRecorder) State() *observable.State[RecorderState] {
	return this.state
}

func (this *fakeRecorder) StartRecording(_ context.Context, chatId chat.Id, language Language) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.calls = append(this.calls, "start:"+chatId.String()+":"+language.String())
	if this.startErr != nil {
		return this.startErr
	}
	this.state.Set(RecorderState{ChatId: chatId})
	return nil
}

func (this *fakeRecorder) StopRecording(context.Context) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.calls = append(this.calls, "stop")
	this.state.Set(RecorderState{})
	return nil
}

func (this *fakeRecorder) Calls() []string {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return append([]string{}, this.calls...)
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	manager    *activechats.Manager
	recorder   *fakeRecorder
	languages  *Languages
	reconciler *Reconciler
	errors     chan error
	done       chan error
	cancel     context.CancelFunc
}

func givenFixture(t *testing.T, g gate.Gate, idleOptions idle.Options, clocks clock.Clocks) *fixture {
	t.Helper()
	repo := memory.New()
	for _, id := range []chat.Id{"a", "b"} {
		repo.PutChat(chat.Chat{Id: id, Title: id.String()}, chat.Rules{CanRead: true, CanWrite: true})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	result := &fixture{
		t:         t,
		ctx:       ctx,
		manager:   activechats.NewManager(repo, clocks, nil),
		recorder:  newFakeRecorder(),
		languages: NewLanguages("de-DE"),
		errors:    make(chan error, 10),
		done:      make(chan error, 1),
	}
	result.reconciler = NewReconciler(result.manager, result.recorder, result.languages, g, idleOptions, &idle.ChatActivitySource{Repository: repo, Clocks: clocks}, clocks)
	result.reconciler.OnError = func(err error) { result.errors <- err }

	runCtx, runCancel := context.WithCancel(ctx)
	result.cancel = runCancel
	go func() { result.done <- result.reconciler.Run(runCtx) }()
	return result
}

func (this *fixture) awaitRecorder(predicate func(RecorderState) bool) RecorderState {
	this.t.Helper()
	v, err := this.recorder.State().When(this.ctx, predicate)
	require.NoError(this.t, err)
	return v
}

func (this *fixture) awaitActiveChats(predicate func(activechats.ActiveChats) bool) activechats.ActiveChats {
	this.t.Helper()
	v, err := this.manager.State().When(this.ctx, predicate)
	require.NoError(this.t, err)
	return v
}

func (this *fixture) stop() error {
	this.cancel()
	select {
	case err := <-this.done:
		return err
	case <-this.ctx.Done():
		this.t.Fatal("reconciler did not stop")
		return nil
	}
}

func recordingOf(id chat.Id) func(RecorderState) bool {
	return func(v RecorderState) bool { return v.ChatId == id }
}

var longIdle = idle.Options{IdleTimeout: time.Hour, IdleTimeoutBeforeCountdown: time.Hour, CheckInterval: time.Second}

func TestReconciler_startsRecorderAndForcesListening(t *testing.T) {
	f := givenFixture(t, gate.Allow, longIdle, clock.NewClocks())

	require.NoError(t, f.manager.SetRecordingChatId(f.ctx, "a", true))
	f.awaitRecorder(recordingOf("a"))
	f.awaitActiveChats(func(v activechats.ActiveChats) bool {
		a, _ := v.Get("a")
		return a.IsRecording && a.IsListening
	})

	require.NoError(t, f.manager.SetRecordingChatId(f.ctx, "b", false))
	f.awaitRecorder(recordingOf("b"))

	assert.ErrorIs(t, f.stop(), context.Canceled)
	assert.Equal(t, []string{"start:a:de-DE", "stop", "start:b:de-DE", "stop"}, f.recorder.Calls())
	assert.True(t, f.manager.RecordingChatId().IsNone())
}

func TestReconciler_declinedByGate(t *testing.T) {
	f := givenFixture(t, gate.Deny, longIdle, clock.NewClocks())

	require.NoError(t, f.manager.SetRecordingChatId(f.ctx, "a", true))
	f.awaitActiveChats(func(v activechats.ActiveChats) bool {
		return v.RecordingChatId().IsNone()
	})

	assert.ErrorIs(t, f.stop(), context.Canceled)
	assert.Empty(t, f.recorder.Calls())
}

func TestReconciler_adoptsExternalStop(t *testing.T) {
	f := givenFixture(t, gate.Allow, longIdle, clock.NewClocks())

	require.NoError(t, f.manager.SetRecordingChatId(f.ctx, "a", false))
	f.awaitRecorder(recordingOf("a"))

	f.recorder.State().Set(RecorderState{})
	f.awaitActiveChats(func(v activechats.ActiveChats) bool {
		return v.RecordingChatId().IsNone() && v.ListeningChatIds().Contains("a")
	})

	assert.ErrorIs(t, f.stop(), context.Canceled)
	assert.Equal(t, []string{"start:a:de-DE"}, f.recorder.Calls())
}

func TestReconciler_deviceErrorForcesNone(t *testing.T) {
	f := givenFixture(t, gate.Allow, longIdle, clock.NewClocks())

	require.NoError(t, f.manager.SetRecordingChatId(f.ctx, "a", false))
	f.awaitRecorder(recordingOf("a"))

	expected := &DeviceError{ChatId: "a", Cause: errors.New("microphone unplugged")}
	f.recorder.State().Set(RecorderState{Error: expected})
	f.awaitActiveChats(func(v activechats.ActiveChats) bool {
		return v.RecordingChatId().IsNone()
	})

	select {
	case err := <-f.errors:
		assert.Same(t, expected, err)
	case <-f.ctx.Done():
		t.Fatal("error was not surfaced")
	}
	assert.ErrorIs(t, f.stop(), context.Canceled)
}

func TestReconciler_failedStartForcesNone(t *testing.T) {
	f := givenFixture(t, gate.Allow, longIdle, clock.NewClocks())
	expected := errors.New("expected")
	f.recorder.mutex.Lock()
	f.recorder.startErr = expected
	f.recorder.mutex.Unlock()

	require.NoError(t, f.manager.SetRecordingChatId(f.ctx, "a", true))
	f.awaitActiveChats(func(v activechats.ActiveChats) bool {
		return v.RecordingChatId().IsNone()
	})

	select {
	case err := <-f.errors:
		assert.ErrorIs(t, err, expected)
	case <-f.ctx.Done():
		t.Fatal("error was not surfaced")
	}
	assert.ErrorIs(t, f.stop(), context.Canceled)
}

func TestReconciler_languageChangeRestartsRecorder(t *testing.T) {
	f := givenFixture(t, gate.Allow, longIdle, clock.NewClocks())

	require.NoError(t, f.manager.SetRecordingChatId(f.ctx, "a", false))
	f.awaitRecorder(recordingOf("a"))

	f.languages.Set("a", "fr-FR")
	require.Eventually(t, func() bool {
		return len(f.recorder.Calls()) == 3
	}, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, f.stop(), context.Canceled)
	assert.Equal(t, []string{"start:a:de-DE", "stop", "start:a:fr-FR", "stop"}, f.recorder.Calls())
}

func TestReconciler_idleStopsRecording(t *testing.T) {
	clocks, fc := clock.NewFakeClocks(epoch)
	f := givenFixture(t, gate.Allow, idle.Options{IdleTimeout: 10 * time.Second, IdleTimeoutBeforeCountdown: 3 * time.Second, CheckInterval: time.Second}, clocks)

	require.NoError(t, f.manager.SetRecordingChatId(f.ctx, "a", false))
	f.awaitRecorder(recordingOf("a"))

	require.NoError(t, fc.BlockUntilContext(f.ctx, 1))
	fc.Advance(3 * time.Second)
	at, err := f.reconciler.StopRecordingAt().When(f.ctx, func(v *time.Time) bool { return v != nil })
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(10*time.Second), *at)

	for i := 0; i < 7; i++ {
		require.NoError(t, fc.BlockUntilContext(f.ctx, 1))
		fc.Advance(time.Second)
	}
	f.awaitRecorder(recordingOf(chat.None))
	f.awaitActiveChats(func(v activechats.ActiveChats) bool {
		return v.RecordingChatId().IsNone()
	})

	assert.ErrorIs(t, f.stop(), context.Canceled)
}

func TestLanguage_Set(t *testing.T) {
	var actual Language
	require.NoError(t, actual.Set(" en-GB "))
	assert.Equal(t, Language("en-GB"), actual)
	assert.Error(t, actual.Set(""))
	assert.Error(t, actual.Set("en GB"))
}

func TestLanguages(t *testing.T) {
	instance := NewLanguages("")
	assert.Equal(t, DefaultLanguage, instance.Of("a"))
	instance.Set("a", "de-DE")
	assert.Equal(t, Language("de-DE"), instance.Of("a"))
	instance.Set("a", "")
	assert.Equal(t, DefaultLanguage, instance.Of("a"))
}
