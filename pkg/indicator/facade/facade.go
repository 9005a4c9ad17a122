package facade

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/indicator"
	"github.com/blaubaer/chat-audio/pkg/indicator/homeassistant"
	"github.com/blaubaer/chat-audio/pkg/indicator/hue"
	"github.com/blaubaer/chat-audio/pkg/observable"
	"github.com/blaubaer/chat-audio/pkg/recording"
)

const switchOffTimeout = 5 * time.Second

type updater interface {
	Update() error
}

// Facade holds the configured indicator, if any.
type Facade struct {
	indicator.Indicator

	Clocks clock.Clocks
	Prompt func(of *string, promptName string, canBeEmpty, isPassword bool) error

	refreshInterval time.Duration
	lock            sync.RWMutex
}

func (this *Facade) Initialize(ctx context.Context, conf *Configuration, saveConfFunc func() error) error {
	this.lock.Lock()
	defer this.lock.Unlock()

	if this.Indicator != nil {
		return nil
	}
	this.refreshInterval = conf.RefreshInterval

	switch conf.Type {
	case indicator.TypeNone:
	case indicator.TypeHue:
		buf := hue.Hue{Clocks: this.Clocks}
		if err := buf.Initialize(ctx, &conf.Hue, saveConfFunc); err != nil {
			return err
		}
		this.Indicator = &buf
	case indicator.TypeHomeAssistant:
		buf := homeassistant.HomeAssistant{Clocks: this.Clocks, Prompt: this.Prompt}
		if err := buf.Initialize(ctx, &conf.HomeAssistant, saveConfFunc); err != nil {
			return err
		}
		this.Indicator = &buf
	default:
		return fmt.Errorf("unsupported indicator type: %v", conf.Type)
	}

	return nil
}

func (this *Facade) Ensure(ctx context.Context, status indicator.Status) error {
	this.lock.RLock()
	defer this.lock.RUnlock()

	if v := this.Indicator; v != nil {
		return v.Ensure(ctx, status)
	}
	return nil
}

func (this *Facade) Update() error {
	this.lock.RLock()
	defer this.lock.RUnlock()

	if v, ok := this.Indicator.(updater); ok {
		return v.Update()
	}
	return nil
}

// Run mirrors the given recorder state to the indicator until ctx is done.
// The indicator is switched off on return.
func (this *Facade) Run(ctx context.Context, recorder *observable.State[recording.RecorderState]) error {
	if this.GetType() == indicator.TypeNone {
		<-ctx.Done()
		return ctx.Err()
	}

	defer func() {
		offCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), switchOffTimeout)
		defer cancel()
		if err := this.Ensure(offCtx, indicator.Status{State: indicator.StateOff}); err != nil {
			log.WithError(err).
				Warn("Cannot switch indicator off.")
		}
	}()

	clocks := this.Clocks.OrDefault()
	snap := recorder.Snapshot()
	for {
		status := indicator.StatusOf(snap.Value)
		if err := this.Ensure(ctx, status); err != nil {
			if common.IsCancellation(err) && ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("cannot ensure indicator is %v: %w", status, err)
		}
		log.With("status", status).
			Debug("Indicator ensured.")

		var refresh <-chan time.Time
		if this.refreshInterval > 0 {
			refresh = clocks.Cpu.After(this.refreshInterval)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-snap.Changed():
			snap = recorder.Snapshot()
		case <-refresh:
			if err := this.Update(); err != nil {
				return fmt.Errorf("cannot update indicator: %w", err)
			}
		}
	}
}

func (this *Facade) Dispose() error {
	this.lock.Lock()
	defer this.lock.Unlock()

	defer func() {
		this.Indicator = nil
	}()

	if v := this.Indicator; v != nil {
		return v.Dispose()
	}
	return nil
}

func (this *Facade) GetType() indicator.Type {
	this.lock.RLock()
	defer this.lock.RUnlock()

	if v := this.Indicator; v != nil {
		return v.GetType()
	}

	return indicator.TypeNone
}
