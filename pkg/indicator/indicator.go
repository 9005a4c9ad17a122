package indicator

import (
	"context"
	"fmt"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/recording"
)

// Indicator shows to the people around whether the microphone is currently
// recording into a chat.
type Indicator interface {
	Ensure(context.Context, Status) error
	Dispose() error

	GetType() Type
}

type Status struct {
	State  State
	ChatId chat.Id
}

// StatusOf the given recorder state. A failed recorder is never on air.
func StatusOf(v recording.RecorderState) Status {
	if v.Error != nil || !v.IsRecording() {
		return Status{State: StateOff}
	}
	return Status{State: StateOn, ChatId: v.ChatId}
}

func (this Status) String() string {
	if this.State == StateOn {
		return fmt.Sprintf("%v(%v)", this.State, this.ChatId)
	}
	return this.State.String()
}
