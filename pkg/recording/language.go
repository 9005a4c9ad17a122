package recording

import (
	"fmt"
	"maps"
	"strings"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

// Language of the speech being recorded, like "en-US".
type Language string

const DefaultLanguage = Language("en-US")

func (this *Language) Set(plain string) error {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return fmt.Errorf("empty language")
	}
	for _, r := range plain {
		if !(r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("illegal language: %q", plain)
		}
	}
	*this = Language(plain)
	return nil
}

func (this Language) String() string {
	return string(this)
}

// Languages holds the language overrides per chat on top of a default.
type Languages struct {
	Default Language

	state *observable.State[map[chat.Id]Language]
}

func NewLanguages(def Language) *Languages {
	if def == "" {
		def = DefaultLanguage
	}
	return &Languages{
		Default: def,
		state:   observable.New(map[chat.Id]Language{}, func(a, b map[chat.Id]Language) bool { return maps.Equal(a, b) }),
	}
}

func (this *Languages) State() *observable.State[map[chat.Id]Language] {
	return this.state
}

func (this *Languages) Of(chatId chat.Id) Language {
	if v, ok := this.state.Get()[chatId]; ok {
		return v
	}
	return this.Default
}

// Set overrides the language of the given chat. An empty language removes
// the override.
func (this *Languages) Set(chatId chat.Id, v Language) {
	this.state.Update(func(current map[chat.Id]Language) map[chat.Id]Language {
		result := maps.Clone(current)
		if v == "" {
			delete(result, chatId)
		} else {
			result[chatId] = v
		}
		return result
	})
}
