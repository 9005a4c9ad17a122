package chat

import (
	"context"
	"iter"
	"slices"
	"time"
)

const DefaultMaxBeginsAtDisorder = 15 * time.Second

// NewEntryReader creates a paginated cursor over the entries of one kind of
// the given chat.
func NewEntryReader(repo Repository, chatId Id, kind EntryKind) *EntryReader {
	return &EntryReader{
		Repository:          repo,
		ChatId:              chatId,
		Kind:                kind,
		MaxBeginsAtDisorder: DefaultMaxBeginsAtDisorder,
	}
}

type EntryReader struct {
	Repository Repository
	ChatId     Id
	Kind       EntryKind

	// MaxBeginsAtDisorder is how far BeginsAt of entries may go backwards
	// while ids are increasing.
	MaxBeginsAtDisorder time.Duration
}

// WhileContext is handed to the while predicate of GetLastWhile.
type WhileContext struct {
	Entry        *Entry
	SkippedCount int
}

func (this *EntryReader) IdRange(ctx context.Context) (IdRange, error) {
	return this.Repository.GetIdRange(ctx, this.ChatId, this.Kind)
}

func (this *EntryReader) Get(ctx context.Context, id int64) (*Entry, error) {
	tile, err := this.Repository.GetTile(ctx, this.ChatId, this.Kind, TileOf(id))
	if err != nil {
		return nil, err
	}
	for _, e := range tile {
		if e.Id == id {
			return &e, nil
		}
	}
	return nil, nil
}

// GetFirst returns the first entry within r which matches filter. A nil
// filter matches everything.
func (this *EntryReader) GetFirst(ctx context.Context, r IdRange, filter func(*Entry) bool) (*Entry, error) {
	for e, err := range this.ReadAll(ctx, r) {
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(e) {
			return e, nil
		}
	}
	return nil, nil
}

// GetLastWhile walks r backwards and returns the first entry matching
// include. The walk ends as soon as while returns false.
func (this *EntryReader) GetLastWhile(ctx context.Context, r IdRange, include func(*Entry) bool, while func(WhileContext) bool) (*Entry, error) {
	skipped := 0
	for e, err := range this.ReadReverse(ctx, r) {
		if err != nil {
			return nil, err
		}
		if while != nil && !while(WhileContext{e, skipped}) {
			return nil, nil
		}
		if include == nil || include(e) {
			return e, nil
		}
		skipped++
	}
	return nil, nil
}

// ReadAll yields every entry within r in ascending order.
func (this *EntryReader) ReadAll(ctx context.Context, r IdRange) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		if r.IsEmpty() {
			return
		}
		for tile := TileOf(r.Start); tile.Start < r.End; tile = (IdRange{tile.End, tile.End + TileSize}) {
			entries, err := this.Repository.GetTile(ctx, this.ChatId, this.Kind, tile)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range entries {
				if e.Id < r.Start {
					continue
				}
				if e.Id >= r.End {
					return
				}
				if !yield(&e, nil) {
					return
				}
			}
		}
	}
}

// ReadReverse yields every entry within r in descending order.
func (this *EntryReader) ReadReverse(ctx context.Context, r IdRange) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		if r.IsEmpty() {
			return
		}
		for tile := TileOf(r.End - 1); tile.End > r.Start; tile = (IdRange{tile.Start - TileSize, tile.Start}) {
			entries, err := this.Repository.GetTile(ctx, this.ChatId, this.Kind, tile)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range slices.Backward(entries) {
				if e.Id >= r.End {
					continue
				}
				if e.Id < r.Start {
					return
				}
				if !yield(&e, nil) {
					return
				}
			}
		}
	}
}

// ReadAllWaitingForNew yields every entry starting at minId and afterwards
// waits for new entries. It ends only if ctx is done or on error.
func (this *EntryReader) ReadAllWaitingForNew(ctx context.Context, minId int64) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		next := minId
		r, err := this.IdRange(ctx)
		for {
			if err != nil {
				yield(nil, err)
				return
			}
			if next >= r.End {
				r, err = this.Repository.WatchIdRange(ctx, this.ChatId, this.Kind, r)
				continue
			}
			for e, rErr := range this.ReadAll(ctx, r.WithStart(max(next, r.Start))) {
				if rErr != nil {
					yield(nil, rErr)
					return
				}
				if !yield(e, nil) {
					return
				}
				next = e.Id + 1
			}
			next = max(next, r.End)
			r, err = this.IdRange(ctx)
		}
	}
}

// FindByMinBeginsAt returns the first entry within r which begins at or after
// minBeginsAt.
func (this *EntryReader) FindByMinBeginsAt(ctx context.Context, minBeginsAt time.Time, r IdRange) (*Entry, error) {
	entry, err := this.findByMinBeginsAtPrecise(ctx, minBeginsAt.Add(-this.MaxBeginsAtDisorder), r)
	if err != nil || entry == nil {
		return nil, err
	}
	return this.GetFirst(ctx, r.WithStart(entry.Id), func(e *Entry) bool {
		return !e.BeginsAt.Before(minBeginsAt)
	})
}

func (this *EntryReader) findByMinBeginsAtPrecise(ctx context.Context, beginsAt time.Time, r IdRange) (*Entry, error) {
	minId, maxId := r.Start, r.End-1
	for minId < maxId {
		midId := minId + (maxId-minId)/2
		entry, err := this.GetFirst(ctx, IdRange{midId, maxId + 1}, nil)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			maxId = midId - 1
			continue
		}
		if !beginsAt.After(entry.BeginsAt) {
			maxId = midId - 1
		} else {
			minId = midId + 1
		}
	}
	return this.GetFirst(ctx, r.WithStart(minId), func(e *Entry) bool {
		return !e.BeginsAt.Before(beginsAt)
	})
}
