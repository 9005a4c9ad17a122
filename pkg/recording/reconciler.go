package recording

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/activechats"
	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/gate"
	"github.com/blaubaer/chat-audio/pkg/idle"
	"github.com/blaubaer/chat-audio/pkg/metrics"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

const (
	stopRetryDelay      = time.Second
	maxStopAttempts     = 5
	compensationTimeout = 10 * time.Second
)

// Reconciler keeps the recording device in sync with the recording chat of
// the active chats and the other way around.
type Reconciler struct {
	ActiveChats *activechats.Manager
	Recorder    Recorder
	Languages   *Languages
	Gate        gate.Gate
	IdleOptions idle.Options
	Activity    idle.ActivitySource
	Clocks      clock.Clocks

	// OnError receives errors which should be shown to the user.
	OnError func(error)

	stopRecordingAt *observable.State[*time.Time]
}

func NewReconciler(activeChats *activechats.Manager, recorder Recorder, languages *Languages, g gate.Gate, idleOptions idle.Options, activity idle.ActivitySource, clocks clock.Clocks) *Reconciler {
	return &Reconciler{
		ActiveChats:     activeChats,
		Recorder:        recorder,
		Languages:       languages,
		Gate:            g,
		IdleOptions:     idleOptions,
		Activity:        activity,
		Clocks:          clocks.OrDefault(),
		stopRecordingAt: newStopRecordingAt(),
	}
}

func newStopRecordingAt() *observable.State[*time.Time] {
	return observable.New[*time.Time](nil, func(a, b *time.Time) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Equal(*b)
	})
}

// StopRecordingAt is the moment the current recording will be stopped
// because of inactivity, or nil while it is not counting down.
func (this *Reconciler) StopRecordingAt() *observable.State[*time.Time] {
	if this.stopRecordingAt == nil {
		this.stopRecordingAt = newStopRecordingAt()
	}
	return this.stopRecordingAt
}

type syncState struct {
	desired  chat.Id
	actual   RecorderState
	language Language
}

// Run reconciles until ctx is done. On return the recording is stopped.
func (this *Reconciler) Run(ctx context.Context) (rErr error) {
	stopRecordingAt := this.StopRecordingAt()
	monitors := &idle.Set{
		Name:     "recording",
		Options:  this.IdleOptions,
		Source:   this.Activity,
		Clocks:   this.Clocks,
		Callback: this.onIdleSignal,
	}
	defer func() {
		if err := monitors.Close(); err != nil && rErr == nil {
			rErr = err
		}
		stopRecordingAt.Set(nil)
	}()
	defer this.compensate(ctx)

	var last syncState
	for {
		chats := this.ActiveChats.State().Snapshot()
		actual := this.Recorder.State().Snapshot()
		languages := this.Languages.State().Snapshot()

		desired := chats.Value.RecordingChatId()
		next, err := this.sync(ctx, last, syncState{desired, actual.Value, this.Languages.Of(desired)})
		if err != nil {
			if common.IsCancellation(err) && ctx.Err() != nil {
				return err
			}
			log.With("chatId", desired).
				WithError(err).
				Warn("Cannot sync recording state; stop recording.")
			this.surface(err)
			if cErr := this.forceNone(ctx); cErr != nil {
				return cErr
			}
			next.desired = chat.None
			next.actual = this.Recorder.State().Get()
		}
		last = next

		var monitored chat.Ids
		if !last.desired.IsNone() {
			monitored = chat.Ids{last.desired}
		} else {
			stopRecordingAt.Set(nil)
		}
		if err := monitors.Update(ctx, monitored); err != nil && !common.IsCancellation(err) {
			log.WithError(err).
				Warn("Idle monitor of recording failed.")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-chats.Changed():
		case <-actual.Changed():
		case <-languages.Changed():
		}
	}
}

// sync applies one step of reconciliation and returns the state which was
// reached.
func (this *Reconciler) sync(ctx context.Context, last, current syncState) (syncState, error) {
	desiredChanged := current.desired != last.desired
	actualChanged := !current.actual.Equal(last.actual)
	l := log.With("desired", current.desired).
		With("actual", current.actual)

	switch {
	case actualChanged && current.actual.Error != nil:
		metrics.ReconcilerAction("recording", "deviceError")
		l.WithError(current.actual.Error).
			Warn("Recording device failed; stop recording.")
		this.surface(current.actual.Error)
		if err := this.forceNone(ctx); err != nil {
			return last, err
		}
		current.desired = chat.None
		return current, nil

	case desiredChanged:
		if current.actual.ChatId == current.desired {
			return current, nil
		}
		if current.actual.IsRecording() {
			metrics.ReconcilerAction("recording", "stop")
			if err := this.stopDevice(ctx); err != nil {
				return current, err
			}
		}
		if !current.desired.IsNone() {
			ok, err := this.Gate.Demand(ctx, "recording")
			if err != nil {
				return current, err
			}
			if !ok {
				metrics.ReconcilerAction("recording", "declined")
				l.Info("Recording was declined.")
				if err := this.forceNone(ctx); err != nil {
					return current, err
				}
				current.desired = chat.None
				current.actual = this.Recorder.State().Get()
				return current, nil
			}
			metrics.ReconcilerAction("recording", "start")
			if err := this.Recorder.StartRecording(ctx, current.desired, current.language); err != nil {
				return current, err
			}
			if err := this.ActiveChats.SetListeningState(ctx, current.desired, true); err != nil {
				return current, err
			}
			l.Info("Recording started.")
		}
		current.actual = this.Recorder.State().Get()
		return current, nil

	case actualChanged:
		if current.actual.ChatId == current.desired {
			return current, nil
		}
		metrics.ReconcilerAction("recording", "adopt")
		l.Info("Recording device changed externally; adopting it.")
		if err := this.ActiveChats.SetRecordingChatId(ctx, current.actual.ChatId, true); err != nil {
			return current, err
		}
		current.desired = this.ActiveChats.RecordingChatId()
		return current, nil

	case !current.desired.IsNone() && current.desired == current.actual.ChatId && current.language != last.language:
		metrics.ReconcilerAction("recording", "restart")
		l.With("language", current.language).
			Info("Language changed; restarting recording.")
		if err := this.stopDevice(ctx); err != nil {
			return current, err
		}
		if err := this.Recorder.StartRecording(ctx, current.desired, current.language); err != nil {
			return current, err
		}
		current.actual = this.Recorder.State().Get()
		return current, nil

	default:
		return current, nil
	}
}

func (this *Reconciler) stopDevice(ctx context.Context) error {
	var errs []error
	for attempt := 1; ; attempt++ {
		err := this.Recorder.StopRecording(ctx)
		if err == nil {
			return nil
		}
		if common.IsCancellation(err) {
			return err
		}
		errs = append(errs, err)
		if attempt >= maxStopAttempts {
			return fmt.Errorf("cannot stop recording after %d attempts: %w", attempt, errors.Join(errs...))
		}
		log.With("attempt", attempt).
			WithError(err).
			Warn("Cannot stop recording; will retry.")
		if err := clock.Sleep(ctx, this.Clocks.Cpu, stopRetryDelay); err != nil {
			return err
		}
	}
}

func (this *Reconciler) forceNone(ctx context.Context) error {
	return this.ActiveChats.SetRecordingChatId(ctx, chat.None, false)
}

// compensate brings everything into a safe state after the loop ended.
func (this *Reconciler) compensate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := this.forceNone(ctx); err != nil {
		log.WithError(err).
			Warn("Cannot reset recording chat.")
	}
	if this.Recorder.State().Get().IsRecording() {
		if err := this.stopDevice(ctx); err != nil {
			log.WithError(err).
				Warn("Cannot stop recording.")
		}
	}
}

func (this *Reconciler) onIdleSignal(ctx context.Context, chatId chat.Id, signal idle.Signal) {
	if !signal.IsIdle {
		this.StopRecordingAt().Set(signal.WillBeIdleAt)
		return
	}
	this.StopRecordingAt().Set(nil)
	if this.ActiveChats.RecordingChatId() != chatId {
		return
	}
	metrics.ReconcilerAction("recording", "idle")
	log.With("chatId", chatId).
		Info("Recording is idle; stop it.")
	if err := this.forceNone(ctx); err != nil && !common.IsCancellation(err) {
		log.With("chatId", chatId).
			WithError(err).
			Warn("Cannot stop idle recording.")
	}
}

func (this *Reconciler) surface(err error) {
	if this.OnError != nil {
		this.OnError(err)
	}
}
