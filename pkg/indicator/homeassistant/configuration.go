package homeassistant

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/blaubaer/chat-audio/pkg/common"
)

const DefaultServer = "http://homeassistant.local:8123/"

func NewConfiguration() Configuration {
	return Configuration{
		EntityId:         fmt.Sprintf("input_boolean.computer_%s_on_air", computerId),
		DeadZoneInterval: time.Second * 60,
		Timeout:          time.Second * 30,
	}
}

var forbiddenComputerIdChars = regexp.MustCompile("[^a-z0-9_]")

func normalizeEntityIdPart(id string) string {
	id = strings.ToLower(id)
	id = strings.TrimSpace(id)
	id = strings.ReplaceAll(id, "-", "_")
	id = strings.ReplaceAll(id, ".", "_")
	id = forbiddenComputerIdChars.ReplaceAllString(id, "_")
	return id
}

var computerId = func() string {
	if result, err := os.Hostname(); err == nil && result != "" {
		return normalizeEntityIdPart(result)
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("cannot generate entity id: %v", err))
	}

	return hex.EncodeToString(buf)
}()

type Configuration struct {
	Server   string `yaml:"server,omitempty" validate:"omitempty,url"`
	Token    string `yaml:"token,omitempty"`
	EntityId string `yaml:"entityId" validate:"required,startswith=input_boolean."`

	DeadZoneInterval time.Duration `yaml:"deadZoneInterval,omitempty" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("indicator.homeassistant.server", "URL of the Home Assistant instance.").
		Envar("CA_INDICATOR_HOMEASSISTANT_SERVER").
		StringVar(&this.Server)
	using.Flag("indicator.homeassistant.token", "Long life token to access the Home Assistant instance.").
		Envar("CA_INDICATOR_HOMEASSISTANT_TOKEN").
		StringVar(&this.Token)
	using.Flag("indicator.homeassistant.entityId", "Entity ID to store the on air state to.").
		Envar("CA_INDICATOR_HOMEASSISTANT_ENTITY_ID").
		StringVar(&this.EntityId)
	using.Flag("indicator.homeassistant.deadZoneInterval", "Duration for how long a local state is used to compare to. To prevent too often check of the remote system. As this is the source of truth.").
		Envar("CA_INDICATOR_HOMEASSISTANT_DEAD_ZONE_INTERVAL").
		DurationVar(&this.DeadZoneInterval)
	using.Flag("indicator.homeassistant.timeout", "Timeout of each request to Home Assistant.").
		Envar("CA_INDICATOR_HOMEASSISTANT_TIMEOUT").
		DurationVar(&this.Timeout)
}
