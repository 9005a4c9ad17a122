package activechats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "chat-audio:active-chats"

// RedisStore keeps active chats as JSON document in a redis key. It allows
// to share the active chats between several devices of the same user.
type RedisStore struct {
	Client redis.Cmdable
	Key    string
}

func (this *RedisStore) key() string {
	if v := this.Key; v != "" {
		return v
	}
	return DefaultRedisKey
}

func (this *RedisStore) Load(ctx context.Context) (ActiveChats, error) {
	b, err := this.Client.Get(ctx, this.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return ActiveChats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load active chats from redis key %q: %w", this.key(), err)
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode active chats from redis key %q: %w", this.key(), err)
	}
	return doc.activeChats()
}

func (this *RedisStore) Save(ctx context.Context, v ActiveChats) error {
	b, err := json.Marshal(newDocument(v))
	if err != nil {
		return err
	}
	if err := this.Client.Set(ctx, this.key(), b, 0).Err(); err != nil {
		return fmt.Errorf("cannot save active chats to redis key %q: %w", this.key(), err)
	}
	return nil
}
