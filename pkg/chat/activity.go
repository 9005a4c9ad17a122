package chat

import (
	"context"
	"time"
)

// LastAudioActivity returns the end of the last text entry of the given chat
// which was transcribed from audio or is still streaming. Only entries from
// startFrom on are considered; the search stops at entries ending before
// minEndsAt or after too many non matching entries.
func LastAudioActivity(ctx context.Context, repository Repository, chatId Id, startFrom int64, minEndsAt time.Time, now time.Time) (*time.Time, error) {
	entry, err := LastAudioEntry(ctx, repository, chatId, startFrom, minEndsAt, now)
	if err != nil || entry == nil {
		return nil, err
	}
	at := entry.EffectiveEndsAt(now)
	return &at, nil
}

const maxSkippedEntries = 100

func LastAudioEntry(ctx context.Context, repository Repository, chatId Id, startFrom int64, minEndsAt time.Time, now time.Time) (*Entry, error) {
	reader := NewEntryReader(repository, chatId, EntryKindText)
	r, err := reader.IdRange(ctx)
	if err != nil {
		return nil, err
	}
	if startFrom > r.Start {
		r = r.WithStart(startFrom)
	}
	return reader.GetLastWhile(ctx, r,
		func(e *Entry) bool { return e.HasAudio || e.IsStreaming() },
		func(w WhileContext) bool {
			return !w.Entry.EffectiveEndsAt(now).Before(minEndsAt) && w.SkippedCount < maxSkippedEntries
		},
	)
}
