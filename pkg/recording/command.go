package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

var ErrAlreadyRecording = errors.New("already recording")

// Command records by running an external capture command, like ffmpeg, for
// each recording. The arguments can contain the placeholders {output},
// {chatId} and {language}.
type Command struct {
	Executable      string
	Arguments       []string
	OutputDirectory string
	Clocks          clock.Clocks

	mutex   sync.Mutex
	current *commandRun
	state   *observable.State[RecorderState]
	init    sync.Once
}

type commandRun struct {
	chatId   chat.Id
	cmd      *exec.Cmd
	done     chan struct{}
	stopping bool
}

func (this *Command) State() *observable.State[RecorderState] {
	this.init.Do(func() {
		this.state = observable.New(RecorderState{}, RecorderState.Equal)
	})
	return this.state
}

func (this *Command) outputFile(chatId chat.Id) string {
	name := fmt.Sprintf("%s-%s.wav",
		strings.Map(func(r rune) rune {
			if r == '/' || r == '\\' || r == ':' {
				return '_'
			}
			return r
		}, chatId.String()),
		this.Clocks.OrDefault().System.Now().Format("20060102-150405"),
	)
	return filepath.Join(this.OutputDirectory, name)
}

func (this *Command) StartRecording(_ context.Context, chatId chat.Id, language Language) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.current != nil {
		return fmt.Errorf("%w: %v", ErrAlreadyRecording, this.current.chatId)
	}
	if this.OutputDirectory != "" {
		if err := os.MkdirAll(this.OutputDirectory, 0700); err != nil {
			return &DeviceError{chatId, err}
		}
	}

	output := this.outputFile(chatId)
	replacer := strings.NewReplacer(
		"{output}", output,
		"{chatId}", chatId.String(),
		"{language}", language.String(),
	)
	args := make([]string, len(this.Arguments))
	for i, arg := range this.Arguments {
		args[i] = replacer.Replace(arg)
	}

	run := &commandRun{
		chatId: chatId,
		cmd:    exec.Command(this.Executable, args...),
		done:   make(chan struct{}),
	}
	if lf, err := os.Create(output + ".log"); err == nil {
		run.cmd.Stderr = lf
		defer func() { _ = lf.Close() }()
	}
	if err := run.cmd.Start(); err != nil {
		err = &DeviceError{chatId, err}
		this.State().Set(RecorderState{Error: err})
		return err
	}
	this.current = run
	this.State().Set(RecorderState{ChatId: chatId})

	log.With("chatId", chatId).
		With("output", output).
		Debug("Recording command started.")

	go this.await(run)
	return nil
}

func (this *Command) await(run *commandRun) {
	err := run.cmd.Wait()

	this.mutex.Lock()
	defer this.mutex.Unlock()
	defer close(run.done)

	if this.current == run {
		this.current = nil
	}
	if run.stopping {
		this.State().Set(RecorderState{})
		return
	}
	if err == nil {
		err = errors.New("recording command exited unexpectedly")
	}
	log.With("chatId", run.chatId).
		WithError(err).
		Warn("Recording command ended without being stopped.")
	this.State().Set(RecorderState{Error: &DeviceError{run.chatId, err}})
}

func (this *Command) StopRecording(ctx context.Context) error {
	this.mutex.Lock()
	run := this.current
	if run == nil {
		this.mutex.Unlock()
		return nil
	}
	run.stopping = true
	this.mutex.Unlock()

	if err := interrupt(run.cmd.Process); err != nil {
		_ = run.cmd.Process.Kill()
	}

	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		_ = run.cmd.Process.Kill()
		return ctx.Err()
	}
}
