package playback

import (
	"context"
	"time"
)

func (this *Player) playRealtime(ctx context.Context, _ time.Time) error {
	if ok, err := this.canRead(ctx); err != nil || !ok {
		return err
	}

	startAt := this.Clocks.System.Now()
	reader := this.reader()
	first, r, err := this.startEntry(ctx, reader, startAt)
	if err != nil {
		return err
	}
	startId := r.End
	if first != nil {
		startId = first.Id
	}

	for entry, err := range reader.ReadAllWaitingForNew(ctx, startId) {
		if err != nil {
			return err
		}
		if entry.EndsAt != nil && entry.EndsAt.Before(startAt) {
			continue
		}
		if this.Options.SkipOwnEntries && entry.AuthorId == this.Options.OwnAuthorId {
			continue
		}
		var skipTo time.Duration
		if entry.EndsAt == nil {
			skipTo = this.Options.StreamingSkipTo
		}
		if err := this.enqueue(ctx, KindRealtime, entry, this.Clocks.Cpu.Now(), skipTo); err != nil {
			return err
		}
	}
	return ctx.Err()
}
