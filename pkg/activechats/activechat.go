package activechats

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
)

// ActiveChat holds the audio session flags of one chat. Two ActiveChat values
// describe the same entity if their ChatId is equal; see SameAs.
type ActiveChat struct {
	ChatId           chat.Id   `json:"chatId" yaml:"chatId"`
	IsListening      bool      `json:"isListening,omitempty" yaml:"isListening,omitempty"`
	IsRecording      bool      `json:"isRecording,omitempty" yaml:"isRecording,omitempty"`
	Recency          time.Time `json:"recency" yaml:"recency"`
	ListeningRecency time.Time `json:"listeningRecency,omitempty" yaml:"listeningRecency,omitempty"`
}

func (this ActiveChat) SameAs(o ActiveChat) bool {
	return this.ChatId == o.ChatId
}

func (this ActiveChat) IsActive() bool {
	return this.IsListening || this.IsRecording
}

// EffectiveRecency is the more recent one of Recency and ListeningRecency.
func (this ActiveChat) EffectiveRecency() time.Time {
	return clock.Max(this.Recency, this.ListeningRecency)
}

func (this ActiveChat) String() string {
	var flags []string
	if this.IsListening {
		flags = append(flags, "listening")
	}
	if this.IsRecording {
		flags = append(flags, "recording")
	}
	return fmt.Sprintf("%v[%s]", this.ChatId, strings.Join(flags, ","))
}

// ActiveChats is an ordered collection of ActiveChat with unique ChatId. It
// is treated as immutable; every modification returns a new instance.
type ActiveChats []ActiveChat

func (this ActiveChats) index(chatId chat.Id) int {
	return slices.IndexFunc(this, func(v ActiveChat) bool { return v.ChatId == chatId })
}

func (this ActiveChats) Get(chatId chat.Id) (ActiveChat, bool) {
	if i := this.index(chatId); i >= 0 {
		return this[i], true
	}
	return ActiveChat{ChatId: chatId}, false
}

func (this ActiveChats) Contains(chatId chat.Id) bool {
	return this.index(chatId) >= 0
}

// With replaces the entry with the same ChatId in place or appends v.
func (this ActiveChats) With(v ActiveChat) ActiveChats {
	result := slices.Clone(this)
	if i := result.index(v.ChatId); i >= 0 {
		result[i] = v
		return result
	}
	return append(result, v)
}

// WithMovedToEnd removes an existing entry with the same ChatId and appends v.
func (this ActiveChats) WithMovedToEnd(v ActiveChat) ActiveChats {
	return append(this.Without(v.ChatId), v)
}

func (this ActiveChats) Without(chatId chat.Id) ActiveChats {
	return slices.DeleteFunc(slices.Clone(this), func(v ActiveChat) bool { return v.ChatId == chatId })
}

func (this ActiveChats) Map(fn func(ActiveChat) ActiveChat) ActiveChats {
	result := make(ActiveChats, len(this))
	for i, v := range this {
		result[i] = fn(v)
	}
	return result
}

// RecordingChatId returns the first chat which is recording.
func (this ActiveChats) RecordingChatId() chat.Id {
	for _, v := range this {
		if v.IsRecording {
			return v.ChatId
		}
	}
	return chat.None
}

func (this ActiveChats) ListeningChatIds() chat.Ids {
	var result chat.Ids
	for _, v := range this {
		if v.IsListening {
			result = append(result, v.ChatId)
		}
	}
	return result
}

func (this ActiveChats) ChatIds() chat.Ids {
	result := make(chat.Ids, len(this))
	for i, v := range this {
		result[i] = v.ChatId
	}
	return result
}

// Equal compares every field of every entry including the order.
func (this ActiveChats) Equal(o ActiveChats) bool {
	return slices.EqualFunc(this, o, func(a, b ActiveChat) bool {
		return a.ChatId == b.ChatId &&
			a.IsListening == b.IsListening &&
			a.IsRecording == b.IsRecording &&
			a.Recency.Equal(b.Recency) &&
			a.ListeningRecency.Equal(b.ListeningRecency)
	})
}

func (this ActiveChats) Strings() []string {
	result := make([]string, len(this))
	for i, v := range this {
		result[i] = v.String()
	}
	return result
}

func (this ActiveChats) String() string {
	return strings.Join(this.Strings(), ",")
}
