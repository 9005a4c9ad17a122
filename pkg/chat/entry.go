package chat

import (
	"fmt"
	"strings"
	"time"
)

type EntryKind uint8

const (
	EntryKindText  = EntryKind(0)
	EntryKindAudio = EntryKind(1)
)

var (
	AllEntryKinds = EntryKinds{
		EntryKindText,
		EntryKindAudio,
	}
)

func (this *EntryKind) Set(plain string) error {
	switch strings.TrimSpace(strings.ToLower(plain)) {
	case "text":
		*this = EntryKindText
		return nil
	case "audio":
		*this = EntryKindAudio
		return nil
	default:
		return fmt.Errorf("illegal-entry-kind: %s", plain)
	}
}

func (this EntryKind) String() string {
	v, err := this.MarshalText()
	if err != nil {
		return fmt.Sprintf("illegal-entry-kind-%d", this)
	}
	return string(v)
}

func (this EntryKind) MarshalText() (text []byte, err error) {
	switch this {
	case EntryKindText:
		return []byte("text"), nil
	case EntryKindAudio:
		return []byte("audio"), nil
	default:
		return nil, fmt.Errorf("illegal entry kind: %d", this)
	}
}

func (this *EntryKind) UnmarshalText(text []byte) error {
	return this.Set(string(text))
}

type EntryKinds []EntryKind

func (this EntryKinds) Strings() []string {
	result := make([]string, len(this))
	for i, v := range this {
		result[i] = v.String()
	}
	return result
}

func (this EntryKinds) String() string {
	return strings.Join(this.Strings(), ",")
}

// Entry is a single text or audio entry of a chat.
//
// An audio entry which is still being produced has a StreamId and no EndsAt.
// Once finalized it refers to its content by ContentId.
type Entry struct {
	Id       int64     `json:"id"`
	ChatId   Id        `json:"chatId"`
	Kind     EntryKind `json:"kind"`
	AuthorId string    `json:"authorId,omitempty"`

	BeginsAt      time.Time  `json:"beginsAt"`
	EndsAt        *time.Time `json:"endsAt,omitempty"`
	ContentEndsAt *time.Time `json:"contentEndsAt,omitempty"`

	StreamId  string `json:"streamId,omitempty"`
	ContentId string `json:"contentId,omitempty"`

	// HasAudio is set on text entries which are transcribed from an audio
	// entry.
	HasAudio bool `json:"hasAudio,omitempty"`
}

func (this Entry) IsStreaming() bool {
	return this.StreamId != ""
}

// Duration is only known for entries which have an end.
func (this Entry) Duration() (time.Duration, bool) {
	if this.EndsAt == nil {
		return 0, false
	}
	return this.EndsAt.Sub(this.BeginsAt), true
}

// EffectiveEndsAt returns the best known end of this entry. For streaming
// entries this is now.
func (this Entry) EffectiveEndsAt(now time.Time) time.Time {
	if this.IsStreaming() {
		return now
	}
	if v := this.EndsAt; v != nil {
		return *v
	}
	if v := this.ContentEndsAt; v != nil {
		return *v
	}
	return this.BeginsAt
}

func (this Entry) String() string {
	return fmt.Sprintf("%v#%d", this.ChatId, this.Id)
}
