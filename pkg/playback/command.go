package playback

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	log "github.com/echocat/slf4g"
	"github.com/google/uuid"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/media"
)

// Command plays every track by piping its audio into an external player
// command, like ffplay, once its play moment was reached. The arguments can
// contain the placeholders {chatId} and {trackId}.
type Command struct {
	Executable string
	Arguments  []string
	Clocks     clock.Clocks

	mutex  sync.Mutex
	tracks map[chat.Id]map[uuid.UUID]*commandTrack
}

type commandTrack struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (this *Command) Play(_ context.Context, track Track, source media.Source, playAt time.Time) *Execution {
	tCtx, cancel := context.WithCancel(context.Background())
	t := &commandTrack{cancel, make(chan struct{})}

	this.mutex.Lock()
	if this.tracks == nil {
		this.tracks = map[chat.Id]map[uuid.UUID]*commandTrack{}
	}
	if this.tracks[track.ChatId] == nil {
		this.tracks[track.ChatId] = map[uuid.UUID]*commandTrack{}
	}
	this.tracks[track.ChatId][track.Id] = t
	this.mutex.Unlock()

	go func() {
		defer close(t.done)
		defer cancel()
		defer this.forget(track)
		if err := this.play(tCtx, track, source, playAt); err != nil && !common.IsCancellation(err) {
			log.With("track", track).
				With("source", source).
				WithError(err).
				Warn("Cannot play track.")
		}
	}()
	return Completed(nil)
}

func (this *Command) play(ctx context.Context, track Track, source media.Source, playAt time.Time) error {
	if err := clock.SleepUntil(ctx, this.Clocks.OrDefault().Cpu, playAt); err != nil {
		return err
	}
	r, err := source.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	replacer := strings.NewReplacer(
		"{chatId}", track.ChatId.String(),
		"{trackId}", track.Id.String(),
	)
	args := make([]string, len(this.Arguments))
	for i, arg := range this.Arguments {
		args[i] = replacer.Replace(arg)
	}
	cmd := exec.CommandContext(ctx, this.Executable, args...)
	cmd.Stdin = r
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("player command failed: %w\n%s", err, string(out))
	}
	return nil
}

func (this *Command) forget(track Track) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	delete(this.tracks[track.ChatId], track.Id)
	if len(this.tracks[track.ChatId]) == 0 {
		delete(this.tracks, track.ChatId)
	}
}

func (this *Command) Stop(ctx context.Context, chatId chat.Id) *Execution {
	this.mutex.Lock()
	var toStop []*commandTrack
	for _, t := range this.tracks[chatId] {
		toStop = append(toStop, t)
	}
	this.mutex.Unlock()

	result := NewExecution()
	go func() {
		for _, t := range toStop {
			t.cancel()
		}
		for _, t := range toStop {
			select {
			case <-t.done:
			case <-ctx.Done():
				result.Complete(ctx.Err())
				return
			}
		}
		result.Complete(nil)
	}()
	return result
}
