package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/blaubaer/chat-audio/pkg/activechats"
	"github.com/blaubaer/chat-audio/pkg/api"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/gate"
	"github.com/blaubaer/chat-audio/pkg/indicator/facade"
	"github.com/blaubaer/chat-audio/pkg/listening"
	"github.com/blaubaer/chat-audio/pkg/playback"
	"github.com/blaubaer/chat-audio/pkg/recording"
)

const appDirectoryName = "chat-audio"

var validate = validator.New()

func NewConfiguration() Configuration {
	return Configuration{
		Gate: gate.TypeTerminal,

		Chats:     NewChatsConfiguration(),
		State:     activechats.NewConfiguration(),
		Recording: recording.NewConfiguration(),
		Listening: listening.NewConfiguration(),
		Playback:  playback.NewConfiguration(),
		Indicator: facade.NewConfiguration(),
		Api:       api.NewConfiguration(),

		Activity: ActivityConfiguration{
			KeepAlive:       time.Minute,
			CollectInterval: 30 * time.Second,
		},
		Retry: RetryConfiguration{
			MinDelay: DefaultRetryMinDelay,
			MaxDelay: DefaultRetryMaxDelay,
		},
	}
}

type Configuration struct {
	PreventAutoSave bool `yaml:"preventAutoSave"`
	Enabled         bool `yaml:"enabled"`

	Gate gate.Type `yaml:"gate"`

	Chats     ChatsConfiguration        `yaml:"chats"`
	State     activechats.Configuration `yaml:"state"`
	Recording recording.Configuration   `yaml:"recording"`
	Listening listening.Configuration   `yaml:"listening"`
	Playback  playback.Configuration    `yaml:"playback"`
	Indicator facade.Configuration      `yaml:"indicator"`
	Api       api.Configuration         `yaml:"api"`

	Activity ActivityConfiguration `yaml:"activity,omitempty"`
	Retry    RetryConfiguration    `yaml:"retry,omitempty"`
}

type ActivityConfiguration struct {
	KeepAlive       time.Duration `yaml:"keepAlive,omitempty" validate:"gte=0"`
	CollectInterval time.Duration `yaml:"collectInterval,omitempty" validate:"gt=0"`
}

type RetryConfiguration struct {
	MinDelay time.Duration `yaml:"minDelay,omitempty" validate:"gt=0"`
	MaxDelay time.Duration `yaml:"maxDelay,omitempty" validate:"gtefield=MinDelay"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("preventAutoSave", "If provided configuration will NOT automatically be saved upon changes.").
		Envar("CA_PREVENT_AUTO_SAVE").
		BoolVar(&this.PreventAutoSave)
	using.Flag("enabled", "If provided all audio operations start right away. Otherwise they wait until enabled using the control API.").
		Envar("CA_ENABLED").
		BoolVar(&this.Enabled)
	using.Flag("gate", "Who decides if audio may start without an explicit user action. Possible values: "+gate.AllTypes.String()).
		Envar("CA_GATE").
		SetValue(&this.Gate)
	using.Flag("activity.keepAlive", "How long the activity of a chat is still watched after nobody is interested in it anymore.").
		Envar("CA_ACTIVITY_KEEP_ALIVE").
		DurationVar(&this.Activity.KeepAlive)
	using.Flag("retry.minDelay", "Delay before a failed operation is restarted the first time.").
		Envar("CA_RETRY_MIN_DELAY").
		DurationVar(&this.Retry.MinDelay)
	using.Flag("retry.maxDelay", "Maximum delay before a failed operation is restarted.").
		Envar("CA_RETRY_MAX_DELAY").
		DurationVar(&this.Retry.MaxDelay)

	this.Chats.SetupConfiguration(using)
	this.State.SetupConfiguration(using)
	this.Recording.SetupConfiguration(using)
	this.Listening.SetupConfiguration(using)
	this.Playback.SetupConfiguration(using)
	this.Indicator.SetupConfiguration(using)
	this.Api.SetupConfiguration(using)
}

func (this Configuration) Validate() error {
	if err := validate.Struct(this); err != nil {
		return fmt.Errorf("illegal configuration: %w", err)
	}
	if err := this.Recording.Validate(); err != nil {
		return err
	}
	if err := this.Listening.IdleOptions().Validate(); err != nil {
		return err
	}
	return this.Playback.Options.Validate()
}

func (this *Configuration) loadFrom(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(this); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (this *Configuration) loadFromFile(fn string, ignoreNotFound bool) error {
	f, err := os.Open(fn)
	if os.IsNotExist(err) && ignoreNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot open configuration file %q: %w", fn, err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := this.loadFrom(f); err != nil {
		return fmt.Errorf("cannot load configuration file %q: %w", fn, err)
	}

	return nil
}

func (this *Configuration) saveTo(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc.Encode(this)
}

func (this *Configuration) saveToFile(fn string) error {
	_ = os.MkdirAll(filepath.Dir(fn), 0700)

	f, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cannot open configuration file %q: %w", fn, err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := this.saveTo(f); err != nil {
		return fmt.Errorf("cannot write file %q: %w", fn, err)
	}

	return nil
}

func appDirectory() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDirectoryName)
	}
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".config", appDirectoryName)
	}
	return "."
}

func defaultConfigurationFile() string {
	return filepath.Join(appDirectory(), "configuration.yml")
}

func defaultStateFile() string {
	return filepath.Join(appDirectory(), "active-chats.yml")
}
