package playback

import (
	"fmt"
	"strings"
	"time"

	"github.com/blaubaer/chat-audio/pkg/chat"
)

type Kind uint8

const (
	KindNone Kind = iota
	KindRealtime
	KindHistorical
)

var AllKinds = Kinds{KindNone, KindRealtime, KindHistorical}

func (this *Kind) Set(plain string) error {
	switch strings.ToLower(plain) {
	case "none", "":
		*this = KindNone
	case "realtime":
		*this = KindRealtime
	case "historical":
		*this = KindHistorical
	default:
		return fmt.Errorf("illegal playback kind: %q", plain)
	}
	return nil
}

func (this Kind) String() string {
	v, err := this.MarshalText()
	if err != nil {
		return fmt.Sprintf("illegal-playback-kind-%d", this)
	}
	return string(v)
}

func (this Kind) MarshalText() (text []byte, err error) {
	switch this {
	case KindNone:
		return []byte("none"), nil
	case KindRealtime:
		return []byte("realtime"), nil
	case KindHistorical:
		return []byte("historical"), nil
	default:
		return nil, fmt.Errorf("illegal playback kind: %d", this)
	}
}

func (this *Kind) UnmarshalText(text []byte) error {
	return this.Set(string(text))
}

type Kinds []Kind

func (this Kinds) Strings() []string {
	result := make([]string, len(this))
	for i, v := range this {
		result[i] = v.String()
	}
	return result
}

func (this Kinds) String() string {
	return strings.Join(this.Strings(), ", ")
}

// State is what should be played: nothing, the given chats in realtime or a
// single chat from StartAt on.
type State struct {
	Kind    Kind      `json:"kind"`
	ChatIds chat.Ids  `json:"chatIds,omitempty"`
	StartAt time.Time `json:"startAt,omitempty"`
}

func None() State {
	return State{}
}

// Realtime creates the state playing the given chats as they are produced.
// Without chats it is None.
func Realtime(chatIds chat.Ids) State {
	if len(chatIds) == 0 {
		return None()
	}
	return State{Kind: KindRealtime, ChatIds: chatIds.Sorted()}
}

func Historical(chatId chat.Id, startAt time.Time) State {
	if chatId.IsNone() {
		return None()
	}
	return State{Kind: KindHistorical, ChatIds: chat.Ids{chatId}, StartAt: startAt}
}

func (this State) IsNone() bool {
	return this.Kind == KindNone
}

func (this State) Equal(o State) bool {
	return this.Kind == o.Kind &&
		this.ChatIds.IsSetEqualTo(o.ChatIds) &&
		this.StartAt.Equal(o.StartAt)
}

func (this State) String() string {
	switch this.Kind {
	case KindRealtime:
		return fmt.Sprintf("realtime(%v)", this.ChatIds)
	case KindHistorical:
		return fmt.Sprintf("historical(%v@%v)", this.ChatIds, this.StartAt.Format(time.RFC3339))
	default:
		return this.Kind.String()
	}
}
