package recording

import (
	"time"

	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/idle"
)

type Configuration struct {
	Idle            idle.Options `yaml:"idle"`
	DefaultLanguage Language     `yaml:"defaultLanguage"`
	Command         struct {
		Executable      string   `yaml:"executable,omitempty"`
		Arguments       []string `yaml:"arguments,omitempty"`
		OutputDirectory string   `yaml:"outputDirectory,omitempty"`
	} `yaml:"command"`
}

func NewConfiguration() Configuration {
	result := Configuration{
		Idle: idle.Options{
			IdleTimeout:                180 * time.Second,
			IdleTimeoutBeforeCountdown: 150 * time.Second,
			CheckInterval:              time.Second,
		},
		DefaultLanguage: DefaultLanguage,
	}
	result.Command.Executable = "ffmpeg"
	result.Command.Arguments = []string{"-hide_banner", "-loglevel", "error", "-f", "pulse", "-i", "default", "-ac", "1", "-ar", "16000", "-metadata", "language={language}", "-y", "{output}"}
	result.Command.OutputDirectory = "recordings"
	return result
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	this.Idle.SetupConfiguration(using, "audio.recording", "CA_AUDIO_RECORDING")
	using.Flag("audio.recording.defaultLanguage", "Language of the speech to be recorded if not set per chat.").
		Envar("CA_AUDIO_RECORDING_DEFAULT_LANGUAGE").
		SetValue(&this.DefaultLanguage)
	using.Flag("recorder.command", "Executable of the command used to record.").
		Envar("CA_RECORDER_COMMAND").
		StringVar(&this.Command.Executable)
	using.Flag("recorder.argument", "Arguments of the recorder command. Can contain {output}, {chatId} and {language}.").
		Envar("CA_RECORDER_ARGUMENTS").
		StringsVar(&this.Command.Arguments)
	using.Flag("recorder.outputDirectory", "Where the recordings are stored.").
		Envar("CA_RECORDER_OUTPUT_DIRECTORY").
		StringVar(&this.Command.OutputDirectory)
}

func (this Configuration) Validate() error {
	return this.Idle.Validate()
}

func (this Configuration) NewCommand() *Command {
	return &Command{
		Executable:      this.Command.Executable,
		Arguments:       this.Command.Arguments,
		OutputDirectory: this.Command.OutputDirectory,
	}
}
