package observable

import (
	"context"
	"sync"
)

// State holds a value, publishes every change of it and allows to await the
// next change. Equal values are not published.
type State[T any] struct {
	equal func(a, b T) bool

	mutex   sync.RWMutex
	value   T
	version uint64
	changed chan struct{}
}

func New[T any](initial T, equal func(a, b T) bool) *State[T] {
	return &State[T]{
		equal:   equal,
		value:   initial,
		changed: make(chan struct{}),
	}
}

func NewComparable[T comparable](initial T) *State[T] {
	return New(initial, func(a, b T) bool { return a == b })
}

// Snapshot is a value of a State at a specific version.
type Snapshot[T any] struct {
	Value   T
	Version uint64

	changed <-chan struct{}
}

// Changed is closed as soon as the State moved past this snapshot.
func (this Snapshot[T]) Changed() <-chan struct{} {
	return this.changed
}

func (this *State[T]) Get() T {
	this.mutex.RLock()
	defer this.mutex.RUnlock()
	return this.value
}

func (this *State[T]) Snapshot() Snapshot[T] {
	this.mutex.RLock()
	defer this.mutex.RUnlock()
	return Snapshot[T]{this.value, this.version, this.changed}
}

// Set replaces the value and reports whether it was published.
func (this *State[T]) Set(v T) bool {
	return this.Update(func(T) T { return v })
}

func (this *State[T]) Update(fn func(current T) T) bool {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	next := fn(this.value)
	if this.equal != nil && this.equal(this.value, next) {
		return false
	}
	this.value = next
	this.version++
	close(this.changed)
	this.changed = make(chan struct{})
	return true
}

// Next waits until the State is newer than the given snapshot.
func (this *State[T]) Next(ctx context.Context, after Snapshot[T]) (Snapshot[T], error) {
	for {
		current := this.Snapshot()
		if current.Version != after.Version {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-current.changed:
		}
	}
}

// When waits until the value satisfies the given predicate.
func (this *State[T]) When(ctx context.Context, predicate func(T) bool) (T, error) {
	current := this.Snapshot()
	for {
		if predicate(current.Value) {
			return current.Value, nil
		}
		var err error
		if current, err = this.Next(ctx, current); err != nil {
			return current.Value, err
		}
	}
}
