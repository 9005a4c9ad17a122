package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/echocat/slf4g"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/metrics"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

const (
	DefaultRetryMinDelay = 100 * time.Millisecond
	DefaultRetryMaxDelay = time.Second
)

var ErrOperationEnded = errors.New("operation ended unexpectedly")

// Operation is a named loop which runs until its context is done.
type Operation struct {
	Name string
	Run  func(ctx context.Context) error
}

// Orchestrator runs all its operations isolated from each other once it was
// enabled. A failed operation is restarted after an exponential delay; the
// others are not affected.
type Orchestrator struct {
	Operations []Operation
	Enabled    *observable.Latch
	Clocks     clock.Clocks

	RetryMinDelay time.Duration
	RetryMaxDelay time.Duration

	// OnError receives every failure of an operation before it is restarted.
	OnError func(operation string, err error)
}

// Run returns after ctx is done and every operation returned.
func (this *Orchestrator) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, op := range this.Operations {
		g.Go(func() error {
			return this.run(gCtx, op)
		})
	}
	err := g.Wait()
	if common.IsCancellation(err) {
		return ctx.Err()
	}
	return err
}

func (this *Orchestrator) run(ctx context.Context, op Operation) error {
	l := log.With("operation", op.Name)

	if v := this.Enabled; v != nil {
		if !v.IsSet() {
			l.Debug("Waiting for being enabled...")
		}
		if err := v.Wait(ctx); err != nil {
			return err
		}
	}

	l.Debug("Operation started.")
	defer l.Debug("Operation stopped.")

	return backoff.RetryNotifyWithTimer(func() error {
		err := this.runOnce(ctx, op)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = ErrOperationEnded
		}
		return err
	}, backoff.WithContext(this.newBackOff(), ctx), func(err error, delay time.Duration) {
		metrics.OperationRestarted(op.Name)
		l.WithError(err).
			With("delay", delay).
			Warn("Operation failed. It will be restarted...")
		if f := this.OnError; f != nil {
			f(op.Name, err)
		}
	}, &clockTimer{clock: this.Clocks.OrDefault().Cpu})
}

func (this *Orchestrator) runOnce(ctx context.Context, op Operation) (rErr error) {
	defer func() {
		if r := recover(); r != nil {
			rErr = fmt.Errorf("operation %s panicked: %v", op.Name, r)
		}
	}()
	return op.Run(ctx)
}

func (this *Orchestrator) newBackOff() *backoff.ExponentialBackOff {
	minDelay, maxDelay := this.RetryMinDelay, this.RetryMaxDelay
	if minDelay <= 0 {
		minDelay = DefaultRetryMinDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultRetryMaxDelay
	}
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(minDelay),
		backoff.WithMaxInterval(maxDelay),
		backoff.WithMultiplier(math.Sqrt2),
		backoff.WithRandomizationFactor(0.1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithClockProvider(this.Clocks.OrDefault().Cpu),
	)
}

// clockTimer lets the retry delays follow the given clock.
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (this *clockTimer) Start(duration time.Duration) {
	if this.timer == nil {
		this.timer = this.clock.NewTimer(duration)
	} else {
		this.timer.Reset(duration)
	}
}

func (this *clockTimer) Stop() {
	if this.timer != nil {
		this.timer.Stop()
	}
}

func (this *clockTimer) C() <-chan time.Time {
	return this.timer.Chan()
}
