package api

import (
	"time"

	"github.com/blaubaer/chat-audio/pkg/common"
)

func NewConfiguration() Configuration {
	return Configuration{
		Listen:          "127.0.0.1:8765",
		ShutdownTimeout: 5 * time.Second,
		MaxActivityWait: 30 * time.Second,
	}
}

type Configuration struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty" validate:"gte=0"`
	MaxActivityWait time.Duration `yaml:"maxActivityWait,omitempty" validate:"gte=0"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("api.listen", "Address the control API listens to. Empty disables the API.").
		Envar("CA_API_LISTEN").
		StringVar(&this.Listen)
	using.Flag("api.shutdownTimeout", "How long running requests are awaited on shutdown.").
		Envar("CA_API_SHUTDOWN_TIMEOUT").
		DurationVar(&this.ShutdownTimeout)
	using.Flag("api.maxActivityWait", "Maximum duration a request may wait for a change of the chat activity.").
		Envar("CA_API_MAX_ACTIVITY_WAIT").
		DurationVar(&this.MaxActivityWait)
}
