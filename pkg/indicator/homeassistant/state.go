package homeassistant

import (
	"time"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/indicator"
)

const attrChatId = "chatId"

type stateGetResponse struct {
	EntityId    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// status of the entity. States like "unavailable" are treated as off.
func (this *stateGetResponse) status() indicator.Status {
	var v indicator.State
	if err := v.Set(this.State); err != nil || v == indicator.StateOff {
		return indicator.Status{State: indicator.StateOff}
	}
	return indicator.Status{State: v, ChatId: this.chatId()}
}

func (this *stateGetResponse) chatId() chat.Id {
	if this.Attributes != nil {
		if v, ok := this.Attributes[attrChatId].(string); ok {
			return chat.Id(v)
		}
	}
	return chat.None
}

type statePostRequest struct {
	State      indicator.State `json:"state"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}

type state struct {
	timestamp time.Time
	status    indicator.Status
}

func (this *state) isEqualTo(o *state) bool {
	return this.status == o.status
}
