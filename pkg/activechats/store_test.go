package activechats

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storedActiveChats = ActiveChats{
	{ChatId: "a", IsListening: true, IsRecording: true, Recency: at(1), ListeningRecency: at(2)},
	{ChatId: "b", IsListening: true, Recency: at(3)},
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	store := &FileStore{Filename: filepath.Join(t.TempDir(), "sub", "active-chats.yaml")}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, storedActiveChats))
	actual, err := store.Load(ctx)

	require.NoError(t, err)
	assert.True(t, storedActiveChats.Equal(actual), "expected %v, got %v", storedActiveChats, actual)
}

func TestFileStore_Load_absent(t *testing.T) {
	store := &FileStore{Filename: filepath.Join(t.TempDir(), "absent.yaml")}

	actual, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, actual)
}

func TestFileStore_Load_skipsDuplicatesAndEmptyIds(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "active-chats.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(`version: 1
activeChats:
  - chatId: a
    isListening: true
    recency: 2024-05-01T12:00:00Z
  - chatId: ""
    isListening: true
    recency: 2024-05-01T12:00:00Z
  - chatId: a
    isRecording: true
    recency: 2024-05-01T12:00:00Z
`), 0600))
	store := &FileStore{Filename: fn}

	actual, err := store.Load(context.Background())

	require.NoError(t, err)
	require.Len(t, actual, 1)
	assert.True(t, actual[0].IsListening)
	assert.False(t, actual[0].IsRecording)
}

func TestFileStore_Load_rejectsNewerVersion(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "active-chats.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("version: 2\nactiveChats: []\n"), 0600))
	store := &FileStore{Filename: fn}

	_, err := store.Load(context.Background())

	assert.ErrorContains(t, err, "unsupported version")
}

func TestRedisStore_Save(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &RedisStore{Client: db}
	expected, err := json.Marshal(newDocument(storedActiveChats))
	require.NoError(t, err)
	mock.ExpectSet(DefaultRedisKey, expected, 0).SetVal("OK")

	require.NoError(t, store.Save(context.Background(), storedActiveChats))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Load(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &RedisStore{Client: db, Key: "custom"}
	plain, err := json.Marshal(newDocument(storedActiveChats))
	require.NoError(t, err)
	mock.ExpectGet("custom").SetVal(string(plain))

	actual, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.True(t, storedActiveChats.Equal(actual), "expected %v, got %v", storedActiveChats, actual)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Load_absent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &RedisStore{Client: db}
	mock.ExpectGet(DefaultRedisKey).RedisNil()

	actual, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, actual)
}

func TestStoreType_Set(t *testing.T) {
	var v StoreType
	require.NoError(t, v.Set("Redis"))
	assert.Equal(t, StoreTypeRedis, v)
	assert.Error(t, v.Set("s3"))
	assert.Equal(t, "none,file,redis", AllStoreTypes.String())
}
