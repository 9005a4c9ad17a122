package listening

import (
	"time"

	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/idle"
)

func NewConfiguration() Configuration {
	return Configuration{
		IdleTimeout:   900 * time.Second,
		CheckInterval: 30 * time.Second,
		Debounce:      DefaultDebounce,
	}
}

type Configuration struct {
	IdleTimeout   time.Duration `yaml:"idleTimeout" validate:"gt=0"`
	CheckInterval time.Duration `yaml:"checkInterval" validate:"gt=0,ltefield=IdleTimeout"`
	Debounce      time.Duration `yaml:"debounce,omitempty" validate:"gte=0"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("audio.listening.idleTimeout", "After which time without activity a chat is no longer listened to.").
		Envar("CA_AUDIO_LISTENING_IDLE_TIMEOUT").
		DurationVar(&this.IdleTimeout)
	using.Flag("audio.listening.checkInterval", "How often the activity of listened chats is checked.").
		Envar("CA_AUDIO_LISTENING_CHECK_INTERVAL").
		DurationVar(&this.CheckInterval)
	using.Flag("audio.listening.debounce", "How long to wait after a playback change before the next one.").
		Envar("CA_AUDIO_LISTENING_DEBOUNCE").
		DurationVar(&this.Debounce)
}

func (this Configuration) IdleOptions() idle.Options {
	return IdleOptions(this.IdleTimeout, this.CheckInterval)
}
