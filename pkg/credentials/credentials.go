package credentials

import (
	"encoding/json"
)

const appName = "github.com/blaubaer/chat-audio/indicator"

// Credentials of the "on air" indicators. They are kept in the credential
// store of the operating system where there is one.
type Credentials struct {
	HueBridge string `json:"hueBridge,omitempty"`
	HueUser   string `json:"hueUser,omitempty"`

	HomeAssistantServer string `json:"homeAssistantServer,omitempty"`
	HomeAssistantToken  string `json:"homeAssistantToken,omitempty"`
}

func (this *Credentials) IsZero() bool {
	return this.IsHueZero() && this.IsHomeAssistantZero()
}

func (this *Credentials) IsHueZero() bool {
	return this.HueBridge == "" || this.HueUser == ""
}

func (this *Credentials) IsHomeAssistantZero() bool {
	return this.HomeAssistantServer == "" || this.HomeAssistantToken == ""
}

func (this *Credentials) MarshalBinary() (data []byte, err error) {
	return json.Marshal(this)
}

func (this *Credentials) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, this)
}

// Complete fills every empty field of this with the value of fallback.
func (this *Credentials) Complete(fallback Credentials) {
	if this.HueBridge == "" {
		this.HueBridge = fallback.HueBridge
	}
	if this.HueUser == "" {
		this.HueUser = fallback.HueUser
	}
	if this.HomeAssistantServer == "" {
		this.HomeAssistantServer = fallback.HomeAssistantServer
	}
	if this.HomeAssistantToken == "" {
		this.HomeAssistantToken = fallback.HomeAssistantToken
	}
}
