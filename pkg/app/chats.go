package app

import (
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/chat/memory"
	"github.com/blaubaer/chat-audio/pkg/chat/remote"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/media"
)

type ChatsBackend uint8

const (
	ChatsBackendRemote = ChatsBackend(0)
	ChatsBackendMemory = ChatsBackend(1)

	ChatsBackendDefault = ChatsBackendRemote
)

var (
	AllChatsBackends = ChatsBackends{
		ChatsBackendRemote,
		ChatsBackendMemory,
	}
)

func (this *ChatsBackend) Set(plain string) error {
	switch strings.TrimSpace(strings.ToLower(plain)) {
	case "remote", "":
		*this = ChatsBackendRemote
		return nil
	case "memory":
		*this = ChatsBackendMemory
		return nil
	default:
		return fmt.Errorf("illegal-chats-backend: %s", plain)
	}
}

func (this ChatsBackend) String() string {
	v, err := this.MarshalText()
	if err != nil {
		return fmt.Sprintf("illegal-chats-backend-%d", this)
	}
	return string(v)
}

func (this ChatsBackend) MarshalText() (text []byte, err error) {
	switch this {
	case ChatsBackendRemote:
		return []byte("remote"), nil
	case ChatsBackendMemory:
		return []byte("memory"), nil
	default:
		return nil, fmt.Errorf("illegal chats backend: %d", this)
	}
}

func (this *ChatsBackend) UnmarshalText(text []byte) error {
	return this.Set(string(text))
}

type ChatsBackends []ChatsBackend

func (this ChatsBackends) Strings() []string {
	result := make([]string, len(this))
	for i, v := range this {
		result[i] = v.String()
	}
	return result
}

func (this ChatsBackends) String() string {
	return strings.Join(this.Strings(), ",")
}

func NewChatsConfiguration() ChatsConfiguration {
	return ChatsConfiguration{
		Backend: ChatsBackendDefault,
		Remote:  remote.NewConfiguration(),
	}
}

type ChatsConfiguration struct {
	Backend ChatsBackend         `yaml:"backend"`
	Remote  remote.Configuration `yaml:"remote,omitempty"`
	// Memory are the chats the memory backend provides.
	Memory []string `yaml:"memory,omitempty"`
}

func (this *ChatsConfiguration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("chats.backend", "Where the chats come from. Possible values: "+AllChatsBackends.String()).
		Envar("CA_CHATS_BACKEND").
		SetValue(&this.Backend)
	using.Flag("chats.memory", "Chat provided by the memory backend. It is readable and writable.").
		Envar("CA_CHATS_MEMORY").
		StringsVar(&this.Memory)
	this.Remote.SetupConfiguration(using)
}

func (this ChatsConfiguration) NewRepository() (chat.Repository, error) {
	switch this.Backend {
	case ChatsBackendRemote:
		return remote.New(this.Remote), nil
	case ChatsBackendMemory:
		result := memory.New()
		for _, plain := range this.Memory {
			var id chat.Id
			if err := id.Set(plain); err != nil {
				return nil, err
			}
			if id.IsNone() {
				continue
			}
			result.PutChat(chat.Chat{Id: id, Title: id.String()}, chat.Rules{CanRead: true, CanWrite: true})
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported chats backend: %v", this.Backend)
	}
}

// NewResolver resolves the audio of entries using the media endpoints of the
// remote chat service. Streams are open-ended, so there is no timeout.
func (this ChatsConfiguration) NewResolver() media.Resolver {
	client := resty.New().
		SetBaseURL(strings.TrimRight(this.Remote.Url, "/"))
	if this.Remote.Token != "" {
		client.SetAuthToken(this.Remote.Token)
	}
	return media.NewRemote(client)
}
