package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/media"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

const stopAllTimeout = 10 * time.Second

// Players owns the playback State and one Player per chat which is played.
type Players struct {
	Repository chat.Repository
	Engine     Engine
	Resolver   media.Resolver
	Clocks     clock.Clocks
	Options    Options

	// OnRealtimeEnded is called if a realtime playback of a chat ended by
	// itself, for example because the chat cannot be read anymore. The chat
	// is not played again until it was removed from the State once.
	OnRealtimeEnded func(ctx context.Context, chatId chat.Id)

	state *observable.State[State]
}

func NewPlayers(repository chat.Repository, engine Engine, resolver media.Resolver, clocks clock.Clocks, options Options) *Players {
	return &Players{
		Repository: repository,
		Engine:     engine,
		Resolver:   resolver,
		Clocks:     clocks.OrDefault(),
		Options:    options,
		state:      observable.New(None(), State.Equal),
	}
}

func (this *Players) State() *observable.State[State] {
	return this.state
}

func (this *Players) StartRealtimePlayback(_ context.Context, chatIds chat.Ids) error {
	this.state.Set(Realtime(chatIds))
	return nil
}

func (this *Players) StartHistoricalPlayback(_ context.Context, chatId chat.Id, startAt time.Time) error {
	if chatId.IsNone() {
		return fmt.Errorf("no chat to play")
	}
	this.state.Set(Historical(chatId, startAt))
	return nil
}

func (this *Players) StopPlayback(context.Context) error {
	this.state.Set(None())
	return nil
}

type playersRun struct {
	players  map[chat.Id]*Player
	playing  map[chat.Id]*Playing
	finished map[chat.Id]*Playing
	ended    chan *Playing
	closed   chan struct{}
}

// Run applies every change of the State to the players until ctx is done.
// If a playback fails everything is stopped, the State is reset to None and
// the error is returned.
func (this *Players) Run(ctx context.Context) (rErr error) {
	run := &playersRun{
		players:  map[chat.Id]*Player{},
		playing:  map[chat.Id]*Playing{},
		finished: map[chat.Id]*Playing{},
		ended:    make(chan *Playing),
		closed:   make(chan struct{}),
	}
	defer close(run.closed)
	defer func() {
		sCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopAllTimeout)
		defer cancel()
		if err := this.stopAll(sCtx, run); err != nil && rErr == nil {
			rErr = err
		}
	}()

	for {
		snapshot := this.state.Snapshot()
		if err := this.apply(ctx, run, snapshot.Value); err != nil {
			if ctx.Err() != nil {
				return err
			}
			return this.fail(ctx, run, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-snapshot.Changed():
		case p := <-run.ended:
			chatId, ok := run.find(p)
			if !ok {
				continue
			}
			delete(run.playing, chatId)
			if err := p.Err(); err != nil {
				return this.fail(ctx, run, fmt.Errorf("playback of chat %v failed: %w", chatId, err))
			}
			if p.Kind == KindRealtime {
				run.finished[chatId] = p
				log.With("chatId", chatId).
					Info("Realtime playback ended.")
				if f := this.OnRealtimeEnded; f != nil {
					f(ctx, chatId)
				}
			}
			if p.Kind == KindHistorical {
				log.With("chatId", chatId).
					Info("Historical playback completed.")
				this.state.Update(func(current State) State {
					if current.Kind == KindHistorical && current.ChatIds.Contains(chatId) {
						return None()
					}
					return current
				})
			}
		}
	}
}

func (this *playersRun) find(p *Playing) (chat.Id, bool) {
	for id, candidate := range this.playing {
		if candidate == p {
			return id, true
		}
	}
	return chat.None, false
}

func (this *Players) player(run *playersRun, chatId chat.Id) *Player {
	if v, ok := run.players[chatId]; ok {
		return v
	}
	v := NewPlayer(chatId, this.Repository, this.Engine, this.Resolver, this.Clocks, this.Options)
	run.players[chatId] = v
	return v
}

func (this *Playing) matches(state State, chatId chat.Id) bool {
	return state.ChatIds.Contains(chatId) && this.Kind == state.Kind && this.StartAt.Equal(state.StartAt)
}

func (this *Players) apply(ctx context.Context, run *playersRun, state State) error {
	for chatId, p := range run.finished {
		if !p.matches(state, chatId) {
			delete(run.finished, chatId)
		}
	}
	for chatId, p := range run.playing {
		if p.matches(state, chatId) {
			continue
		}
		if err := this.player(run, chatId).Stop(ctx); err != nil {
			return err
		}
		delete(run.playing, chatId)
	}

	if state.IsNone() {
		return nil
	}
	for _, chatId := range state.ChatIds {
		if _, ok := run.playing[chatId]; ok {
			continue
		}
		if _, ok := run.finished[chatId]; ok {
			continue
		}
		p, err := this.player(run, chatId).Play(ctx, state.Kind, state.StartAt)
		if err != nil {
			return err
		}
		run.playing[chatId] = p
		go func() {
			select {
			case <-p.Done():
				select {
				case run.ended <- p:
				case <-run.closed:
				}
			case <-run.closed:
			}
		}()
	}
	log.With("state", state).
		Debug("Playback state applied.")
	return nil
}

func (this *Players) fail(ctx context.Context, run *playersRun, err error) error {
	log.WithError(err).
		Warn("Playback failed; stopping everything.")
	this.state.Set(None())
	sCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopAllTimeout)
	defer cancel()
	return errors.Join(err, this.stopAll(sCtx, run))
}

func (this *Players) stopAll(ctx context.Context, run *playersRun) error {
	var errs []error
	for chatId, p := range run.players {
		if err := p.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		delete(run.playing, chatId)
	}
	return errors.Join(errs...)
}
