package activity

import (
	"context"
	"slices"
	"time"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/observable"
)

const (
	DefaultExtraActivityDuration = 250 * time.Millisecond
	DefaultCheckInterval         = 500 * time.Millisecond
	DefaultMaxEntryDuration      = 180 * time.Second
)

// AuthorIds are the authors currently producing audio in a chat, sorted.
type AuthorIds []string

func (this AuthorIds) Contains(authorId string) bool {
	_, ok := slices.BinarySearch(this, authorId)
	return ok
}

// Chat watches which authors of one chat currently stream audio. An author
// stays active for ExtraActivityDuration after its entry ended.
type Chat struct {
	ChatId                chat.Id
	Repository            chat.Repository
	Clocks                clock.Clocks
	ExtraActivityDuration time.Duration
	CheckInterval         time.Duration
	MaxEntryDuration      time.Duration

	state *observable.State[AuthorIds]
}

func newChat(chatId chat.Id, repository chat.Repository, clocks clock.Clocks) *Chat {
	return &Chat{
		ChatId:                chatId,
		Repository:            repository,
		Clocks:                clocks.OrDefault(),
		ExtraActivityDuration: DefaultExtraActivityDuration,
		CheckInterval:         DefaultCheckInterval,
		MaxEntryDuration:      DefaultMaxEntryDuration,
		state:                 observable.New[AuthorIds](nil, func(a, b AuthorIds) bool { return slices.Equal(a, b) }),
	}
}

func (this *Chat) State() *observable.State[AuthorIds] {
	return this.state
}

func (this *Chat) ActiveAuthorIds() AuthorIds {
	return this.state.Get()
}

func (this *Chat) IsAuthorActive(authorId string) bool {
	return this.state.Get().Contains(authorId)
}

// run checks the chat every CheckInterval until ctx is done.
func (this *Chat) run(ctx context.Context) error {
	reader := chat.NewEntryReader(this.Repository, this.ChatId, chat.EntryKindAudio)
	startId := int64(-1)
	for {
		r, err := reader.IdRange(ctx)
		if err != nil {
			return err
		}
		now := this.Clocks.System.Now()
		if startId < 0 {
			first, err := reader.FindByMinBeginsAt(ctx, now.Add(-this.MaxEntryDuration), r)
			if err != nil {
				return err
			}
			startId = r.End
			if first != nil {
				startId = first.Id
			}
		}

		var authors AuthorIds
		nextStartId := r.End
		for entry, err := range reader.ReadAll(ctx, r.WithStart(max(startId, r.Start))) {
			if err != nil {
				return err
			}
			active := entry.EndsAt == nil || entry.EndsAt.Add(this.ExtraActivityDuration).After(now)
			if !active {
				continue
			}
			nextStartId = min(nextStartId, entry.Id)
			if entry.AuthorId != "" && !slices.Contains(authors, entry.AuthorId) {
				authors = append(authors, entry.AuthorId)
			}
		}
		slices.Sort(authors)
		this.state.Set(authors)
		startId = nextStartId

		if err := clock.Sleep(ctx, this.Clocks.Cpu, this.CheckInterval); err != nil {
			return err
		}
	}
}
