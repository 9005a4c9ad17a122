package listening

import (
	"context"
	"fmt"
	"maps"
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
	"github.com/blaubaer/chat-audio/pkg/playback"
)

const (
	DefaultDebounce     = 100 * time.Millisecond
	compensationTimeout = 10 * time.Second
)

// Playback is what the Reconciler controls.
type Playback interface {
	State() *observable.State[playback.State]
	StartRealtimePlayback(ctx context.Context, chatIds chat.Ids) error
	StopPlayback(ctx context.Context) error
}

// Reconciler plays the listened chats in realtime and stops listening to
// chats which became idle. It never interrupts a historical playback.
type Reconciler struct {
	ActiveChats *activechats.Manager
	Playback    Playback
	Gate        gate.Gate
	IdleOptions idle.Options
	Activity    idle.ActivitySource
	Clocks      clock.Clocks
	Debounce    time.Duration

	stopListeningAt *observable.State[map[chat.Id]time.Time]
}

func NewReconciler(activeChats *activechats.Manager, pb Playback, g gate.Gate, idleOptions idle.Options, activity idle.ActivitySource, clocks clock.Clocks) *Reconciler {
	return &Reconciler{
		ActiveChats:     activeChats,
		Playback:        pb,
		Gate:            g,
		IdleOptions:     idleOptions,
		Activity:        activity,
		Clocks:          clocks.OrDefault(),
		Debounce:        DefaultDebounce,
		stopListeningAt: newStopListeningAt(),
	}
}

func newStopListeningAt() *observable.State[map[chat.Id]time.Time] {
	return observable.New(map[chat.Id]time.Time{}, func(a, b map[chat.Id]time.Time) bool {
		return maps.EqualFunc(a, b, time.Time.Equal)
	})
}

// StopListeningAt holds for every listened chat which is counting down the
// moment listening will stop.
func (this *Reconciler) StopListeningAt() *observable.State[map[chat.Id]time.Time] {
	if this.stopListeningAt == nil {
		this.stopListeningAt = newStopListeningAt()
	}
	return this.stopListeningAt
}

// Run reconciles until ctx is done. If it fails for any other reason all
// chats stop being listened to.
func (this *Reconciler) Run(ctx context.Context) (rErr error) {
	failed := make(chan error, 1)
	monitors := &idle.Set{
		Name:     "listening",
		Options:  this.IdleOptions,
		Source:   this.Activity,
		Clocks:   this.Clocks,
		Callback: this.onIdleSignal,
		OnFailure: func(chatId chat.Id, err error) {
			select {
			case failed <- fmt.Errorf("idle monitor of chat %v failed: %w", chatId, err):
			default:
			}
		},
	}
	defer func() {
		if err := monitors.Close(); err != nil && rErr == nil {
			rErr = err
		}
		this.StopListeningAt().Set(map[chat.Id]time.Time{})
	}()
	defer func() {
		if r := recover(); r != nil {
			this.compensate(ctx)
			panic(r)
		}
		if rErr != nil && ctx.Err() == nil {
			this.compensate(ctx)
		}
	}()

	for {
		chats := this.ActiveChats.State().Snapshot()
		actual := this.Playback.State().Snapshot()
		listening := chats.Value.ListeningChatIds()

		if err := monitors.Update(ctx, listening); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("idle monitor of listening failed: %w", err)
		}
		this.StopListeningAt().Update(func(current map[chat.Id]time.Time) map[chat.Id]time.Time {
			result := maps.Clone(current)
			maps.DeleteFunc(result, func(id chat.Id, _ time.Time) bool {
				return !listening.Contains(id)
			})
			return result
		})

		changed, err := this.sync(ctx, actual.Value, playback.Realtime(listening))
		if err != nil {
			return err
		}
		if changed {
			if err := clock.Sleep(ctx, this.Clocks.Cpu, this.Debounce); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-chats.Changed():
		case <-actual.Changed():
		case err := <-failed:
			return err
		}
	}
}

func (this *Reconciler) sync(ctx context.Context, actual, expected playback.State) (bool, error) {
	if actual.Kind == playback.KindHistorical || actual.Equal(expected) {
		return false, nil
	}
	l := log.With("actual", actual).
		With("expected", expected)

	if actual.IsNone() {
		ok, err := this.Gate.Demand(ctx, "listening")
		if err != nil {
			return false, err
		}
		if !ok {
			metrics.ReconcilerAction("listening", "declined")
			l.Info("Listening was declined.")
			return true, this.ActiveChats.ClearListeningState(ctx)
		}
	}

	if expected.IsNone() {
		metrics.ReconcilerAction("listening", "stop")
		if err := this.Playback.StopPlayback(ctx); err != nil {
			return false, fmt.Errorf("cannot stop playback: %w", err)
		}
		l.Debug("Realtime playback stopped.")
		return true, nil
	}

	metrics.ReconcilerAction("listening", "start")
	if err := this.Playback.StartRealtimePlayback(ctx, expected.ChatIds); err != nil {
		return false, fmt.Errorf("cannot start realtime playback of %v: %w", expected.ChatIds, err)
	}
	l.Debug("Realtime playback started.")
	return true, nil
}

func (this *Reconciler) compensate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := this.ActiveChats.ClearListeningState(ctx); err != nil {
		log.WithError(err).
			Warn("Cannot reset listening chats.")
	}
}

func (this *Reconciler) onIdleSignal(ctx context.Context, chatId chat.Id, signal idle.Signal) {
	this.StopListeningAt().Update(func(current map[chat.Id]time.Time) map[chat.Id]time.Time {
		result := maps.Clone(current)
		if signal.WillBeIdleAt != nil {
			result[chatId] = *signal.WillBeIdleAt
		} else {
			delete(result, chatId)
		}
		return result
	})
	if !signal.IsIdle {
		return
	}
	metrics.ReconcilerAction("listening", "idle")
	log.With("chatId", chatId).
		Info("Listening is idle; stop it.")
	if err := this.ActiveChats.SetListeningState(ctx, chatId, false); err != nil && !common.IsCancellation(err) {
		log.With("chatId", chatId).
			WithError(err).
			Warn("Cannot stop idle listening.")
	}
}

// IdleOptions derives the idle options of listening from the idle timeout
// and the interval the activity is checked in.
func IdleOptions(idleTimeout, checkInterval time.Duration) idle.Options {
	return idle.CountdownAtEnd(idleTimeout, checkInterval)
}
