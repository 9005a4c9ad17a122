package playback

import (
	"context"
	"fmt"
	"time"

	log "github.com/echocat/slf4g"
	"github.com/google/uuid"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/media"
	"github.com/blaubaer/chat-audio/pkg/metrics"
)

const (
	minEnqueueDelay  = 50 * time.Millisecond
	forceStopTimeout = 5 * time.Second
)

// Player plays the audio of one chat, either in realtime or historical.
type Player struct {
	ChatId     chat.Id
	Repository chat.Repository
	Engine     Engine
	Resolver   media.Resolver
	Clocks     clock.Clocks
	Options    Options

	lock    chan struct{}
	current *Playing
}

func NewPlayer(chatId chat.Id, repository chat.Repository, engine Engine, resolver media.Resolver, clocks clock.Clocks, options Options) *Player {
	return &Player{
		ChatId:     chatId,
		Repository: repository,
		Engine:     engine,
		Resolver:   resolver,
		Clocks:     clocks.OrDefault(),
		Options:    options,
		lock:       make(chan struct{}, 1),
	}
}

// Playing is a playback started by Player.Play.
type Playing struct {
	Kind    Kind
	StartAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed when the playback ended. Historical playback ends by
// itself once everything was enqueued.
func (this *Playing) Done() <-chan struct{} {
	return this.done
}

// Err is the reason the playback failed. It is only valid after Done was
// closed.
func (this *Playing) Err() error {
	return this.err
}

func (this *Player) acquire(ctx context.Context) (func(), error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case this.lock <- struct{}{}:
		return func() { <-this.lock }, nil
	}
}

// Play stops the current playback and starts a new one. The playback lives
// until ctx is done, Stop is called or it failed.
func (this *Player) Play(ctx context.Context, kind Kind, startAt time.Time) (*Playing, error) {
	release, err := this.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := this.stop(ctx); err != nil {
		return nil, err
	}

	var play func(context.Context, time.Time) error
	switch kind {
	case KindRealtime:
		play = this.playRealtime
	case KindHistorical:
		play = this.playHistorical
	default:
		return nil, fmt.Errorf("cannot play %v", kind)
	}

	pCtx, cancel := context.WithCancel(ctx)
	result := &Playing{
		Kind:    kind,
		StartAt: startAt,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	this.current = result

	l := log.With("chatId", this.ChatId).
		With("kind", kind).
		With("startAt", startAt)
	go func() {
		defer close(result.done)
		defer cancel()
		l.Debug("Playback started.")
		err := play(pCtx, startAt)
		if err != nil && !common.IsCancellation(err) {
			l.WithError(err).
				Warn("Playback failed; stop it.")
			fCtx, fCancel := context.WithTimeout(context.WithoutCancel(pCtx), forceStopTimeout)
			defer fCancel()
			if sErr := this.Engine.Stop(fCtx, this.ChatId).Wait(fCtx); sErr != nil {
				l.WithError(sErr).
					Warn("Cannot force stop playback.")
			}
			result.err = err
			return
		}
		l.Debug("Playback ended.")
	}()
	return result, nil
}

// Stop ends the current playback and returns after the engine acknowledged
// the stop.
func (this *Player) Stop(ctx context.Context) error {
	release, err := this.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return this.stop(ctx)
}

func (this *Player) stop(ctx context.Context) error {
	current := this.current
	if current == nil {
		return nil
	}
	current.cancel()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-current.done:
	}
	if err := this.Engine.Stop(ctx, this.ChatId).Wait(ctx); err != nil {
		return fmt.Errorf("cannot stop playback of chat %v: %w", this.ChatId, err)
	}
	this.current = nil
	return nil
}

func (this *Player) reader() *chat.EntryReader {
	return chat.NewEntryReader(this.Repository, this.ChatId, chat.EntryKindAudio)
}

func (this *Player) canRead(ctx context.Context) (bool, error) {
	rules, err := this.Repository.GetRules(ctx, this.ChatId)
	if err != nil {
		return false, err
	}
	return rules.CanRead, nil
}

// startEntry is the first entry which can still be playing at startAt.
func (this *Player) startEntry(ctx context.Context, reader *chat.EntryReader, startAt time.Time) (*chat.Entry, chat.IdRange, error) {
	r, err := reader.IdRange(ctx)
	if err != nil {
		return nil, r, err
	}
	entry, err := reader.FindByMinBeginsAt(ctx, startAt.Add(-this.Options.MaxEntryDuration), r)
	return entry, r, err
}

func (this *Player) enqueue(ctx context.Context, kind Kind, entry *chat.Entry, playAt time.Time, skipTo time.Duration) error {
	if d, ok := entry.Duration(); ok && skipTo > d {
		return nil
	}
	source, err := this.Resolver.Resolve(ctx, *entry, skipTo)
	if err != nil {
		return fmt.Errorf("cannot resolve audio of %v: %w", entry, err)
	}
	track := Track{
		Id:         uuid.New(),
		ChatId:     this.ChatId,
		EntryId:    entry.Id,
		RecordedAt: entry.BeginsAt.Add(skipTo),
		SkipTo:     skipTo,
	}
	if err := this.Engine.Play(ctx, track, source, playAt).Wait(ctx); err != nil {
		return fmt.Errorf("cannot enqueue %v: %w", track, err)
	}
	metrics.TrackEnqueued(kind.String(), source.Kind(), playAt.Sub(this.Clocks.Cpu.Now()))
	log.With("track", track).
		With("playAt", playAt).
		Trace("Track enqueued.")
	return nil
}
