package notification

import (
	"errors"
	"slices"
	"time"

	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/observable"
	"github.com/blaubaer/chat-audio/pkg/recording"
)

const DefaultCapacity = 20

// Notification is an error which the user should know about.
type Notification struct {
	At      time.Time `json:"at"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
	ChatId  string    `json:"chatId,omitempty"`
}

// Notifications keeps the latest published notifications, oldest first.
type Notifications struct {
	Capacity int
	Clocks   clock.Clocks

	state *observable.State[[]Notification]
}

func NewNotifications(clocks clock.Clocks) *Notifications {
	return &Notifications{
		Capacity: DefaultCapacity,
		Clocks:   clocks.OrDefault(),
		state:    observable.New[[]Notification](nil, func(a, b []Notification) bool { return slices.Equal(a, b) }),
	}
}

func (this *Notifications) State() *observable.State[[]Notification] {
	return this.state
}

func (this *Notifications) Get() []Notification {
	return this.state.Get()
}

func (this *Notifications) Publish(source string, err error) {
	if err == nil {
		return
	}
	v := Notification{
		At:      this.Clocks.System.Now(),
		Source:  source,
		Message: err.Error(),
	}
	var de *recording.DeviceError
	if errors.As(err, &de) {
		v.ChatId = de.ChatId.String()
	}

	this.state.Update(func(current []Notification) []Notification {
		result := append(slices.Clone(current), v)
		if n := len(result) - max(this.Capacity, 1); n > 0 {
			result = result[n:]
		}
		return result
	})
}

// Publisher returns a function which publishes errors of the given source.
func (this *Notifications) Publisher(source string) func(error) {
	return func(err error) {
		this.Publish(source, err)
	}
}

func (this *Notifications) Clear() {
	this.state.Set(nil)
}
