package hue

import "github.com/blaubaer/chat-audio/pkg/common"

func NewConfiguration() Configuration {
	return Configuration{
		Name: common.MustNewRegexp("^OnAir"),

		Brightness: 254,
		Hue:        65535,
		Saturation: 254,
	}
}

type Configuration struct {
	Pair   bool   `yaml:"pair,omitempty"`
	Bridge string `yaml:"bridge,omitempty"`
	User   string `yaml:"user,omitempty"`

	Name  common.Regexp `yaml:"target"`
	Kinds Kinds         `yaml:"kinds,omitempty"`

	Brightness uint8  `yaml:"brightness" validate:"gte=1"`
	Hue        uint16 `yaml:"hue"`
	Saturation uint8  `yaml:"saturation"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("indicator.hue.pair", "If true this application will pair again with an existing hue. This will be implicit enabled if this application is not already paired.").
		Envar("CA_INDICATOR_HUE_PAIR").
		BoolVar(&this.Pair)
	using.Flag("indicator.hue.bridge", "Usually the bridge is automatically detected. You can specify an explicit one if they are more than one. This is only required while pairing and will afterwards be ignored.").
		Envar("CA_INDICATOR_HUE_BRIDGE").
		StringVar(&this.Bridge)
	using.Flag("indicator.hue.user", "Usually this is set while pairing and will then be persisted. If this set this will be used and not be persisted.").
		Envar("CA_INDICATOR_HUE_USER").
		StringVar(&this.User)
	using.Flag("indicator.hue.name", "Name as regex of the lights/groups which should show that the microphone is on air.").
		Envar("CA_INDICATOR_HUE_NAME").
		SetValue(&this.Name)
	using.Flag("indicator.hue.kind", "Kind(s) of what should be handled. Possible values: "+AllKinds.String()).
		Envar("CA_INDICATOR_HUE_KIND").
		SetValue(&this.Kinds)

	using.Flag("indicator.hue.brightness", "The brightness value to set the light to. Brightness is a scale from 1 (the minimum the light is capable of) to 254 (the maximum).").
		Envar("CA_INDICATOR_HUE_BRIGHTNESS").
		Uint8Var(&this.Brightness)
	using.Flag("indicator.hue.hue", "The hue value to set light to. The hue value is a wrapping value between 0 and 65535. Both 0 and 65535 are red, 25500 is green and 46920 is blue.").
		Envar("CA_INDICATOR_HUE_HUE").
		Uint16Var(&this.Hue)
	using.Flag("indicator.hue.saturation", "Saturation of the light. 254 is the most saturated (colored) and 0 is the least saturated (white).").
		Envar("CA_INDICATOR_HUE_SATURATION").
		Uint8Var(&this.Saturation)
}
