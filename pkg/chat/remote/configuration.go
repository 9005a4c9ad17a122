package remote

import (
	"time"

	"github.com/blaubaer/chat-audio/pkg/common"
)

func NewConfiguration() Configuration {
	return Configuration{
		Url:     "http://localhost:8080/api/v1",
		Timeout: 30 * time.Second,
	}
}

type Configuration struct {
	Url     string        `yaml:"url,omitempty" validate:"omitempty,url"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("chats.remote.url", "Base URL of the chat service.").
		Envar("CA_CHATS_REMOTE_URL").
		StringVar(&this.Url)
	using.Flag("chats.remote.token", "Bearer token used to access the chat service.").
		Envar("CA_CHATS_REMOTE_TOKEN").
		StringVar(&this.Token)
	using.Flag("chats.remote.timeout", "Timeout of each request to the chat service.").
		Envar("CA_CHATS_REMOTE_TIMEOUT").
		DurationVar(&this.Timeout)
}
