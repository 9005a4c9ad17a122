package idle

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/metrics"
)

// Signal is what a running monitor reports about its chat.
type Signal struct {
	IsIdle       bool
	WillBeIdleAt *time.Time
}

func (this Signal) String() string {
	switch {
	case this.IsIdle:
		return "idle"
	case this.WillBeIdleAt != nil:
		return "idleAt(" + this.WillBeIdleAt.Format(time.RFC3339) + ")"
	default:
		return "notIdle"
	}
}

func (this Signal) kind() string {
	switch {
	case this.IsIdle:
		return "idle"
	case this.WillBeIdleAt != nil:
		return "countdown"
	default:
		return "notIdle"
	}
}

// Callback receives the signals of the monitors of a Set. It is called from
// the goroutine of the corresponding monitor.
type Callback func(ctx context.Context, chatId chat.Id, signal Signal)

// Set keeps one Monitor running per chat id it was asked for.
type Set struct {
	Name     string
	Options  Options
	Source   ActivitySource
	Clocks   clock.Clocks
	Callback Callback
	// OnFailure is called from the goroutine of a monitor which failed.
	OnFailure func(chatId chat.Id, err error)

	mutex   sync.Mutex
	running map[chat.Id]*runningMonitor
}

type runningMonitor struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Running returns the chat ids which currently have a monitor.
func (this *Set) Running() chat.Ids {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	result := make(chat.Ids, 0, len(this.running))
	for id := range this.running {
		result = append(result, id)
	}
	return result.Sorted()
}

// Update stops all monitors not in desired and waits for them to finish
// before it starts monitors for the new ones. Monitors which are still
// running are left alone. Monitors which already finished, because they
// reported idle or failed, are replaced by new ones. Failures of finished and
// stopped monitors are returned.
func (this *Set) Update(ctx context.Context, desired chat.Ids) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.running == nil {
		this.running = map[chat.Id]*runningMonitor{}
	}

	var errs []error
	for id, m := range this.running {
		select {
		case <-m.done:
			delete(this.running, id)
			if m.err != nil {
				errs = append(errs, m.err)
			}
		default:
		}
	}

	var toStop []*runningMonitor
	for id, m := range this.running {
		if !desired.Contains(id) {
			toStop = append(toStop, m)
			delete(this.running, id)
		}
	}
	errs = append(errs, this.stop(ctx, toStop))
	if ctx.Err() != nil {
		return errors.Join(append(errs, ctx.Err())...)
	}

	for _, id := range desired {
		if _, ok := this.running[id]; ok {
			continue
		}
		this.running[id] = this.start(ctx, id)
	}
	return errors.Join(errs...)
}

// Close stops all monitors and waits for them.
func (this *Set) Close() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	toStop := make([]*runningMonitor, 0, len(this.running))
	for _, m := range this.running {
		toStop = append(toStop, m)
	}
	this.running = nil
	return this.stop(context.Background(), toStop)
}

func (this *Set) stop(ctx context.Context, ms []*runningMonitor) error {
	for _, m := range ms {
		m.cancel()
	}
	var errs []error
	for _, m := range ms {
		select {
		case <-m.done:
			if m.err != nil {
				errs = append(errs, m.err)
			}
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		}
	}
	return errors.Join(errs...)
}

func (this *Set) start(ctx context.Context, chatId chat.Id) *runningMonitor {
	ctx, cancel := context.WithCancel(ctx)
	result := &runningMonitor{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	monitor := Monitor{
		ChatId:  chatId,
		Options: this.Options,
		Source:  this.Source,
		Clocks:  this.Clocks.OrDefault(),
	}
	l := log.With("monitor", this.Name).
		With("chatId", chatId)

	go func() {
		defer close(result.done)
		l.Debug("Idle monitor started.")
		for at, err := range monitor.Watch(ctx) {
			if err != nil {
				if !common.IsCancellation(err) {
					l.WithError(err).Warn("Idle monitor failed.")
					result.err = err
					if f := this.OnFailure; f != nil {
						f(chatId, err)
					}
				}
				return
			}
			this.emit(ctx, chatId, Signal{WillBeIdleAt: at})
		}
		l.Debug("Chat became idle.")
		this.emit(ctx, chatId, Signal{IsIdle: true})
	}()
	return result
}

func (this *Set) emit(ctx context.Context, chatId chat.Id, signal Signal) {
	metrics.IdleSignal(this.Name, signal.kind())
	if cb := this.Callback; cb != nil {
		cb(ctx, chatId, signal)
	}
}
