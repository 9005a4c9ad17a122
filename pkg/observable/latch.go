package observable

import (
	"context"
	"sync"
)

// Latch is a one-shot signal. Once set it stays set.
type Latch struct {
	once   sync.Once
	ch     chan struct{}
	chInit sync.Once
}

func (this *Latch) channel() chan struct{} {
	this.chInit.Do(func() {
		this.ch = make(chan struct{})
	})
	return this.ch
}

func (this *Latch) Set() {
	ch := this.channel()
	this.once.Do(func() {
		close(ch)
	})
}

func (this *Latch) IsSet() bool {
	select {
	case <-this.channel():
		return true
	default:
		return false
	}
}

func (this *Latch) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-this.channel():
		return nil
	}
}
