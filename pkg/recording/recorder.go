package recording

import (
	"context"
	"errors"
	"fmt"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

// RecorderState is what the recording device currently does. An empty
// ChatId means it does not record.
type RecorderState struct {
	ChatId chat.Id
	Error  error
}

func (this RecorderState) IsRecording() bool {
	return !this.ChatId.IsNone()
}

func (this RecorderState) Equal(o RecorderState) bool {
	return this.ChatId == o.ChatId && errors.Is(this.Error, o.Error) && errors.Is(o.Error, this.Error)
}

func (this RecorderState) String() string {
	if this.Error != nil {
		return fmt.Sprintf("%v (error: %v)", this.ChatId, this.Error)
	}
	if !this.IsRecording() {
		return "none"
	}
	return this.ChatId.String()
}

// Recorder is the recording device. StartRecording and StopRecording return
// after the resulting state was published.
type Recorder interface {
	State() *observable.State[RecorderState]
	StartRecording(ctx context.Context, chatId chat.Id, language Language) error
	StopRecording(ctx context.Context) error
}

// DeviceError reports that the recording device failed, for example because
// the microphone is not available.
type DeviceError struct {
	ChatId chat.Id
	Cause  error
}

func (this *DeviceError) Error() string {
	if this.Cause == nil {
		return fmt.Sprintf("recording device failed for chat %v", this.ChatId)
	}
	return fmt.Sprintf("recording device failed for chat %v: %v", this.ChatId, this.Cause)
}

func (this *DeviceError) Unwrap() error {
	return this.Cause
}
