package playback

import (
	"github.com/blaubaer/chat-audio/pkg/common"
)

type Configuration struct {
	Options `yaml:",inline"`
	Command struct {
		Executable string   `yaml:"executable,omitempty"`
		Arguments  []string `yaml:"arguments,omitempty"`
	} `yaml:"command"`
}

func NewConfiguration() Configuration {
	result := Configuration{Options: NewOptions()}
	result.Command.Executable = "ffplay"
	result.Command.Arguments = []string{"-hide_banner", "-loglevel", "error", "-nodisp", "-autoexit", "-i", "pipe:0"}
	return result
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	this.Options.SetupConfiguration(using)
	using.Flag("player.command", "Executable of the command used to play tracks. It receives the audio on stdin.").
		Envar("CA_PLAYER_COMMAND").
		StringVar(&this.Command.Executable)
	using.Flag("player.argument", "Arguments of the player command. Can contain {chatId} and {trackId}.").
		Envar("CA_PLAYER_ARGUMENTS").
		StringsVar(&this.Command.Arguments)
}

func (this Configuration) NewCommand() *Command {
	return &Command{
		Executable: this.Command.Executable,
		Arguments:  this.Command.Arguments,
	}
}
