package chat

import (
	"context"
	"errors"
)

var (
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("not found")
)

type Chat struct {
	Id    Id     `json:"id"`
	Title string `json:"title"`
}

type Rules struct {
	CanRead  bool `json:"canRead"`
	CanWrite bool `json:"canWrite"`
}

// Repository is the access to chats and their entries as the current user.
type Repository interface {
	GetChat(ctx context.Context, chatId Id) (Chat, error)
	GetRules(ctx context.Context, chatId Id) (Rules, error)
	GetIdRange(ctx context.Context, chatId Id, kind EntryKind) (IdRange, error)

	// GetTile returns all entries within the given range ordered by id.
	GetTile(ctx context.Context, chatId Id, kind EntryKind, r IdRange) ([]Entry, error)

	// WatchIdRange blocks until the id range of the given chat differs from
	// known and returns the new one.
	WatchIdRange(ctx context.Context, chatId Id, kind EntryKind, known IdRange) (IdRange, error)
}
