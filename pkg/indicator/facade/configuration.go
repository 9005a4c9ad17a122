package facade

import (
	"time"

	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/indicator"
	"github.com/blaubaer/chat-audio/pkg/indicator/homeassistant"
	"github.com/blaubaer/chat-audio/pkg/indicator/hue"
)

func NewConfiguration() Configuration {
	return Configuration{
		Type:            indicator.TypeDefault,
		RefreshInterval: time.Minute * 5,
		Hue:             hue.NewConfiguration(),
		HomeAssistant:   homeassistant.NewConfiguration(),
	}
}

type Configuration struct {
	Type            indicator.Type              `yaml:"type"`
	RefreshInterval time.Duration               `yaml:"refreshInterval,omitempty" validate:"gte=0"`
	Hue             hue.Configuration           `yaml:"hue,omitempty"`
	HomeAssistant   homeassistant.Configuration `yaml:"homeAssistant,omitempty"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("indicator", "Indicator which shows that the microphone is on air. All possible values: "+indicator.AllTypes.String()).
		Envar("CA_INDICATOR").
		SetValue(&this.Type)
	using.Flag("indicator.refreshInterval", "How often the indicator is ensured again even if the recording state did not change. 0 disables it.").
		Envar("CA_INDICATOR_REFRESH_INTERVAL").
		DurationVar(&this.RefreshInterval)

	this.Hue.SetupConfiguration(using)
	this.HomeAssistant.SetupConfiguration(using)
}
