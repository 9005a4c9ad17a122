package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/media"
)

// Track is a single audio entry handed to the Engine.
type Track struct {
	Id         uuid.UUID
	ChatId     chat.Id
	EntryId    int64
	RecordedAt time.Time
	SkipTo     time.Duration
}

func (this Track) String() string {
	return fmt.Sprintf("%v#%d@%v", this.ChatId, this.EntryId, this.SkipTo)
}

// Engine plays tracks. Both operations return an Execution which completes
// as soon as the engine acknowledged the command.
type Engine interface {
	Play(ctx context.Context, track Track, source media.Source, playAt time.Time) *Execution
	// Stop stops all tracks of the given chat.
	Stop(ctx context.Context, chatId chat.Id) *Execution
}

// Execution is a command sent to an Engine.
type Execution struct {
	done chan struct{}
	err  error
}

func NewExecution() *Execution {
	return &Execution{done: make(chan struct{})}
}

// Completed returns an Execution which is already complete.
func Completed(err error) *Execution {
	result := NewExecution()
	result.Complete(err)
	return result
}

// Complete must be called exactly once.
func (this *Execution) Complete(err error) {
	this.err = err
	close(this.done)
}

func (this *Execution) Done() <-chan struct{} {
	return this.done
}

func (this *Execution) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-this.done:
		return this.err
	}
}
