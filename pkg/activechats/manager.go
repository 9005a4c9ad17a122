package activechats

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/echocat/slf4g"
	"golang.org/x/sync/errgroup"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/metrics"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

// ErrReentrantUpdate is the panic value if UpdateActiveChats is called while
// the same update is still running.
var ErrReentrantUpdate = errors.New("reentrant update of active chats")

// Updater transforms the current active chats into the desired ones. The
// given context marks the running update; calling back into the Manager with
// it panics with ErrReentrantUpdate.
type Updater func(ctx context.Context, current ActiveChats) ActiveChats

// Manager owns the active chats of the current user. Every mutation goes
// through UpdateActiveChats which enforces the invariants before it commits.
type Manager struct {
	repository chat.Repository
	clocks     clock.Clocks
	store      Store

	state *observable.State[ActiveChats]
	lock  chan struct{}
}

func NewManager(repository chat.Repository, clocks clock.Clocks, store Store) *Manager {
	return &Manager{
		repository: repository,
		clocks:     clocks.OrDefault(),
		store:      store,
		state:      observable.New(ActiveChats{}, ActiveChats.Equal),
		lock:       make(chan struct{}, 1),
	}
}

type updateCtxKey struct {
	manager *Manager
}

func (this *Manager) State() *observable.State[ActiveChats] {
	return this.state
}

func (this *Manager) Get() ActiveChats {
	return this.state.Get()
}

func (this *Manager) now() time.Time {
	return this.clocks.System.Now()
}

func (this *Manager) acquire(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(updateCtxKey{this}) != nil {
		panic(ErrReentrantUpdate)
	}
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case this.lock <- struct{}{}:
	}
	return context.WithValue(ctx, updateCtxKey{this}, true), func() { <-this.lock }, nil
}

// UpdateActiveChats applies updater to the current active chats. If the
// result differs it is normalized and committed. If the rules of any of the
// chats cannot be fetched nothing is committed and the error is returned.
func (this *Manager) UpdateActiveChats(ctx context.Context, updater Updater) error {
	ctx, release, err := this.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	original := this.state.Get()
	updated := updater(ctx, original)
	if updated.Equal(original) {
		metrics.ActiveChatsUpdated("unchanged")
		return nil
	}

	normalized, err := this.normalize(ctx, updated)
	if err != nil {
		metrics.ActiveChatsUpdated("failed")
		return err
	}

	this.commit(ctx, normalized)
	return nil
}

// RemoveActiveChat removes the given chat; nothing happens for chat.None.
func (this *Manager) RemoveActiveChat(ctx context.Context, chatId chat.Id) error {
	if chatId.IsNone() {
		return nil
	}
	return this.UpdateActiveChats(ctx, func(_ context.Context, current ActiveChats) ActiveChats {
		return current.Without(chatId)
	})
}

func (this *Manager) commit(ctx context.Context, v ActiveChats) {
	if !this.state.Set(v) {
		metrics.ActiveChatsUpdated("unchanged")
		return
	}
	metrics.ActiveChatsUpdated("committed")
	recording := 0
	if !v.RecordingChatId().IsNone() {
		recording = 1
	}
	metrics.SetActiveChats(len(v.ListeningChatIds()), recording, len(v))

	log.With("activeChats", v).
		Debug("Active chats changed.")

	if store := this.store; store != nil {
		if err := store.Save(ctx, v); err != nil {
			log.With("activeChats", v).
				WithError(err).
				Warn("Cannot persist active chats. They will be lost on restart.")
		}
	}
}

func (this *Manager) normalize(ctx context.Context, candidates ActiveChats) (ActiveChats, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	rules := make([]chat.Rules, len(candidates))
	g, gCtx := errgroup.WithContext(ctx)
	for i, v := range candidates {
		g.Go(func() error {
			r, err := this.repository.GetRules(gCtx, v.ChatId)
			if err != nil {
				return fmt.Errorf("cannot retrieve rules of chat %v: %w", v.ChatId, err)
			}
			rules[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recencies := map[chat.Id]time.Time{}
	if len(candidates) > MaxActiveChatCount {
		recencies = this.effectiveRecencies(ctx, candidates)
	}
	return normalize(candidates, rules, MaxActiveChatCount, func(v ActiveChat) time.Time {
		if r, ok := recencies[v.ChatId]; ok {
			return r
		}
		return v.EffectiveRecency()
	}), nil
}

// effectiveRecencies takes the latest audio activity of listened chats into
// account. Chats without known activity are not part of the result.
func (this *Manager) effectiveRecencies(ctx context.Context, candidates ActiveChats) map[chat.Id]time.Time {
	results := make([]time.Time, len(candidates))
	var g errgroup.Group
	for i, v := range candidates {
		if !v.IsListening {
			continue
		}
		g.Go(func() error {
			last, err := chat.LastAudioActivity(ctx, this.repository, v.ChatId, 0, time.Time{}, this.now())
			if err != nil {
				log.With("chatId", v.ChatId).
					WithError(err).
					Debug("Cannot retrieve the last activity of chat. Using its recency only.")
				return nil
			}
			if last != nil {
				results[i] = clock.Max(v.EffectiveRecency(), *last)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[chat.Id]time.Time, len(candidates))
	for i, v := range candidates {
		if !results[i].IsZero() {
			result[v.ChatId] = results[i]
		}
	}
	return result
}

// Restore loads the active chats from the store, turns off everything which
// must not survive a restart and commits the result.
func (this *Manager) Restore(ctx context.Context) error {
	if this.store == nil {
		return nil
	}
	loaded, err := this.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("cannot restore active chats: %w", err)
	}

	ctx, release, err := this.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	sanitized := sanitizeRestored(loaded, this.now())
	normalized, err := this.normalize(ctx, sanitized)
	if err != nil {
		log.With("activeChats", sanitized).
			WithError(err).
			Warn("Cannot validate restored active chats. Starting without any.")
		normalized = ActiveChats{}
	}
	this.commit(ctx, normalized)

	log.With("activeChats", normalized).
		Info("Active chats restored.")
	return nil
}
