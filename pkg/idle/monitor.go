package idle

import (
	"context"
	"iter"
	"time"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
)

// Activity is the last qualifying activity found in a chat. Cursor allows
// the next lookup to continue from there.
type Activity struct {
	At     time.Time
	Cursor int64
}

type ActivitySource interface {
	// LastActivity returns the last activity of the given chat starting at
	// cursor which is not before minAt, or nil if there is none.
	LastActivity(ctx context.Context, chatId chat.Id, cursor int64, minAt time.Time) (*Activity, error)
}

// ChatActivitySource treats transcribed audio and streaming entries of a chat
// as activity.
type ChatActivitySource struct {
	Repository chat.Repository
	Clocks     clock.Clocks
}

func (this *ChatActivitySource) LastActivity(ctx context.Context, chatId chat.Id, cursor int64, minAt time.Time) (*Activity, error) {
	now := this.Clocks.System.Now()
	entry, err := chat.LastAudioEntry(ctx, this.Repository, chatId, cursor, minAt, now)
	if err != nil || entry == nil {
		return nil, err
	}
	return &Activity{entry.EffectiveEndsAt(now), entry.Id}, nil
}

// Monitor watches a single chat for inactivity.
type Monitor struct {
	ChatId  chat.Id
	Options Options
	Source  ActivitySource
	Clocks  clock.Clocks
}

// Watch yields nil while the chat is not idle and the moment it will become
// idle while counting down. The sequence ends without an error exactly when
// the chat became idle. If ctx is done its error is yielded.
func (this *Monitor) Watch(ctx context.Context) iter.Seq2[*time.Time, error] {
	return func(yield func(*time.Time, error) bool) {
		if err := this.Options.Validate(); err != nil {
			yield(nil, err)
			return
		}
		opts := this.Options
		startedAt := this.Clocks.System.Now()

		if !yield(nil, nil) {
			return
		}
		// Directly after the start there cannot be anything to check.
		if err := clock.Sleep(ctx, this.Clocks.Cpu, opts.IdleTimeoutBeforeCountdown); err != nil {
			yield(nil, err)
			return
		}

		var last *Activity
		for {
			var cursor int64
			if last != nil {
				cursor = last.Cursor
			}
			activity, err := this.Source.LastActivity(ctx, this.ChatId, cursor, startedAt)
			if err != nil {
				yield(nil, err)
				return
			}
			if activity != nil {
				last = activity
			}

			lastEntryAt := startedAt
			if last != nil {
				lastEntryAt = clock.Max(last.At, startedAt)
			}
			now := this.Clocks.System.Now()
			willBeIdleAt := lastEntryAt.Add(opts.IdleTimeout)
			timeBeforeStop := clock.Positive(willBeIdleAt.Sub(now))
			timeBeforeCountdown := clock.Positive(lastEntryAt.Add(opts.IdleTimeoutBeforeCountdown).Sub(now))

			var sleep time.Duration
			switch {
			case timeBeforeStop == 0:
				return
			case timeBeforeCountdown == 0:
				if !yield(&willBeIdleAt, nil) {
					return
				}
				sleep = min(timeBeforeStop, opts.CheckInterval)
			default:
				if !yield(nil, nil) {
					return
				}
				sleep = timeBeforeCountdown
			}

			if err := clock.Sleep(ctx, this.Clocks.Cpu, sleep); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
