package playback

import (
	"context"
	"time"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
)

// playHistorical plays everything recorded from startAt on back to back.
// Gaps between entries are skipped while the spacing inside a block of
// overlapping entries is kept.
func (this *Player) playHistorical(ctx context.Context, startAt time.Time) error {
	if ok, err := this.canRead(ctx); err != nil || !ok {
		return err
	}

	reader := this.reader()
	first, r, err := this.startEntry(ctx, reader, startAt)
	if err != nil {
		return err
	}
	if first == nil {
		log.With("chatId", this.ChatId).
			With("startAt", startAt).
			Info("Nothing to play.")
		return nil
	}

	playStartedAt := this.Clocks.Cpu.Now()
	playbackBlockEnd := startAt
	var playbackOffset time.Duration

	for entry, err := range reader.ReadAll(ctx, r.WithStart(first.Id)) {
		if err != nil {
			return err
		}
		if entry.IsStreaming() {
			continue
		}

		entryBeginsAt := clock.Max(entry.BeginsAt, startAt)
		entryEndsAt := this.endsAt(entry)
		if entryEndsAt.Before(startAt) {
			continue
		}
		if playbackBlockEnd.Before(entryBeginsAt.Add(playbackOffset)) {
			playbackOffset = playbackBlockEnd.Sub(entryBeginsAt)
		}
		playAt := entryBeginsAt.Add(playbackOffset)
		realPlayAt := playStartedAt.Add(playAt.Sub(startAt))

		if err := this.enqueueDelay(ctx, realPlayAt.Add(-this.Options.EnqueueAhead)); err != nil {
			return err
		}
		if err := this.enqueue(ctx, KindHistorical, entry, realPlayAt, entryBeginsAt.Sub(entry.BeginsAt)); err != nil {
			return err
		}
		playbackBlockEnd = clock.Max(playbackBlockEnd, entryEndsAt.Add(playbackOffset))
	}
	return nil
}

func (this *Player) endsAt(entry *chat.Entry) time.Time {
	result := entry.BeginsAt.Add(this.Options.InfDuration())
	if entry.EndsAt != nil {
		result = *entry.EndsAt
	}
	if entry.ContentEndsAt != nil {
		result = clock.Min(result, *entry.ContentEndsAt)
	}
	return result
}

// enqueueDelay waits until the given moment. Very short delays are skipped.
func (this *Player) enqueueDelay(ctx context.Context, until time.Time) error {
	if until.Sub(this.Clocks.Cpu.Now()) <= minEnqueueDelay {
		return ctx.Err()
	}
	return clock.SleepUntil(ctx, this.Clocks.Cpu, until)
}

// RewindMoment returns the moment of the recording which is shift of audio
// away from playingAt, skipping everything without audio in between. A
// negative shift goes back. It returns nil if there is nothing to rewind to.
func (this *Player) RewindMoment(ctx context.Context, playingAt time.Time, shift time.Duration) (*time.Time, error) {
	switch {
	case shift == 0:
		return &playingAt, nil
	case shift < 0:
		return this.rewindMomentInPast(ctx, playingAt, -shift)
	default:
		return this.rewindMomentInFuture(ctx, playingAt, shift)
	}
}

func (this *Player) rewindMomentInFuture(ctx context.Context, playingAt time.Time, shift time.Duration) (*time.Time, error) {
	reader := this.reader()
	first, r, err := this.startEntry(ctx, reader, playingAt)
	if err != nil || first == nil {
		return nil, err
	}

	remaining := shift
	position := playingAt
	for entry, err := range reader.ReadAll(ctx, r.WithStart(first.Id)) {
		if err != nil {
			return nil, err
		}
		if entry.IsStreaming() || entry.EndsAt != nil && entry.EndsAt.Before(playingAt) {
			continue
		}
		entryBeginsAt := clock.Max(entry.BeginsAt, position)
		entryEndsAt := entry.BeginsAt.Add(this.Options.MaxEntryDuration)
		if entry.EndsAt != nil {
			entryEndsAt = *entry.EndsAt
		}
		if candidate := entryBeginsAt.Add(remaining); !candidate.After(entryEndsAt) {
			return &candidate, nil
		}
		remaining -= entryEndsAt.Sub(entryBeginsAt)
		position = entryEndsAt
	}
	return &position, nil
}

func (this *Player) rewindMomentInPast(ctx context.Context, playingAt time.Time, shift time.Duration) (*time.Time, error) {
	reader := this.reader()
	first, r, err := this.startEntry(ctx, reader, playingAt)
	if err != nil || first == nil {
		return nil, err
	}

	var last *chat.Entry
	for entry, err := range reader.ReadAll(ctx, r.WithStart(first.Id)) {
		if err != nil {
			return nil, err
		}
		if entry.IsStreaming() {
			continue
		}
		if entry.EndsAt != nil && !entry.EndsAt.Before(playingAt) {
			last = entry
			break
		}
	}
	if last == nil {
		return nil, nil
	}

	remaining := shift
	position := playingAt
	for entry, err := range reader.ReadReverse(ctx, chat.IdRange{Start: r.Start, End: last.Id + 1}) {
		if err != nil {
			return nil, err
		}
		if entry.IsStreaming() || !entry.BeginsAt.Before(playingAt) {
			continue
		}
		entryBeginsAt := entry.BeginsAt
		entryEndsAt := position
		if entry.EndsAt != nil {
			entryEndsAt = clock.Min(*entry.EndsAt, position)
		}
		if candidate := entryEndsAt.Add(-remaining); !candidate.Before(entryBeginsAt) {
			return &candidate, nil
		}
		remaining -= entryEndsAt.Sub(entryBeginsAt)
		position = entryBeginsAt
	}
	return &position, nil
}
