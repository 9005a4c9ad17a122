package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/blaubaer/chat-audio/pkg/chat"
)

// Repository keeps chats and their entries in memory. It is used by tests
// and as the "memory" backend.
type Repository struct {
	mutex   sync.RWMutex
	chats   map[chat.Id]*chatData
	changed chan struct{}
}

type chatData struct {
	chat       chat.Chat
	rules      chat.Rules
	rulesError error
	entries    map[chat.EntryKind][]chat.Entry
	nextId     map[chat.EntryKind]int64
}

func New() *Repository {
	return &Repository{
		chats:   make(map[chat.Id]*chatData),
		changed: make(chan struct{}),
	}
}

func (this *Repository) notify() {
	close(this.changed)
	this.changed = make(chan struct{})
}

// PutChat creates or replaces the given chat with the given rules.
func (this *Repository) PutChat(c chat.Chat, rules chat.Rules) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if existing, ok := this.chats[c.Id]; ok {
		existing.chat = c
		existing.rules = rules
		existing.rulesError = nil
	} else {
		this.chats[c.Id] = &chatData{
			chat:    c,
			rules:   rules,
			entries: make(map[chat.EntryKind][]chat.Entry),
			nextId:  make(map[chat.EntryKind]int64),
		}
	}
	this.notify()
}

// FailRules makes every GetRules of the given chat fail with err. A nil err
// resets this.
func (this *Repository) FailRules(chatId chat.Id, err error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	if v, ok := this.chats[chatId]; ok {
		v.rulesError = err
	}
}

// Add appends the given entry, assigns its id and returns it.
func (this *Repository) Add(e chat.Entry) (chat.Entry, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	data, ok := this.chats[e.ChatId]
	if !ok {
		return chat.Entry{}, fmt.Errorf("%w: chat %v", chat.ErrNotFound, e.ChatId)
	}
	e.Id = data.nextId[e.Kind]
	data.nextId[e.Kind] = e.Id + 1
	data.entries[e.Kind] = append(data.entries[e.Kind], e)
	this.notify()
	return e, nil
}

// Replace updates an existing entry, identified by chat, kind and id.
func (this *Repository) Replace(e chat.Entry) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	data, ok := this.chats[e.ChatId]
	if !ok {
		return fmt.Errorf("%w: chat %v", chat.ErrNotFound, e.ChatId)
	}
	entries := data.entries[e.Kind]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Id >= e.Id })
	if i >= len(entries) || entries[i].Id != e.Id {
		return fmt.Errorf("%w: entry %v", chat.ErrNotFound, e)
	}
	entries[i] = e
	this.notify()
	return nil
}

func (this *Repository) get(chatId chat.Id) (*chatData, error) {
	data, ok := this.chats[chatId]
	if !ok {
		return nil, fmt.Errorf("%w: chat %v", chat.ErrNotFound, chatId)
	}
	return data, nil
}

func (this *Repository) GetChat(_ context.Context, chatId chat.Id) (chat.Chat, error) {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	data, err := this.get(chatId)
	if err != nil {
		return chat.Chat{}, err
	}
	return data.chat, nil
}

func (this *Repository) GetRules(_ context.Context, chatId chat.Id) (chat.Rules, error) {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	data, ok := this.chats[chatId]
	if !ok {
		return chat.Rules{}, nil
	}
	if err := data.rulesError; err != nil {
		return chat.Rules{}, err
	}
	return data.rules, nil
}

func (this *Repository) GetIdRange(_ context.Context, chatId chat.Id, kind chat.EntryKind) (chat.IdRange, error) {
	this.mutex.RLock()
	defer this.mutex.RUnlock()
	return this.idRange(chatId, kind)
}

func (this *Repository) idRange(chatId chat.Id, kind chat.EntryKind) (chat.IdRange, error) {
	data, err := this.get(chatId)
	if err != nil {
		return chat.IdRange{}, err
	}
	return chat.IdRange{End: data.nextId[kind]}, nil
}

func (this *Repository) GetTile(_ context.Context, chatId chat.Id, kind chat.EntryKind, r chat.IdRange) ([]chat.Entry, error) {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	data, err := this.get(chatId)
	if err != nil {
		return nil, err
	}
	var result []chat.Entry
	for _, e := range data.entries[kind] {
		if r.Contains(e.Id) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (this *Repository) WatchIdRange(ctx context.Context, chatId chat.Id, kind chat.EntryKind, known chat.IdRange) (chat.IdRange, error) {
	for {
		this.mutex.RLock()
		current, err := this.idRange(chatId, kind)
		changed := this.changed
		this.mutex.RUnlock()

		if err != nil {
			return chat.IdRange{}, err
		}
		if current != known {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return chat.IdRange{}, ctx.Err()
		case <-changed:
		}
	}
}
