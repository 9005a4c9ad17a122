package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/chat-audio/pkg/chat"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func givenServer(t *testing.T) *httptest.Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	authorized := func(c *gin.Context) bool {
		if c.GetHeader("Authorization") != "Bearer secret" {
			c.Status(http.StatusUnauthorized)
			return false
		}
		return true
	}

	r.GET("/api/chats/:chatId", func(c *gin.Context) {
		if !authorized(c) {
			return
		}
		if c.Param("chatId") != "c1" {
			c.Status(http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, chat.Chat{Id: "c1", Title: "One"})
	})
	r.GET("/api/chats/:chatId/rules", func(c *gin.Context) {
		if !authorized(c) {
			return
		}
		if c.Param("chatId") != "c1" {
			c.Status(http.StatusForbidden)
			return
		}
		c.JSON(http.StatusOK, chat.Rules{CanRead: true, CanWrite: true})
	})
	r.GET("/api/chats/:chatId/entries/:kind/range", func(c *gin.Context) {
		if !authorized(c) {
			return
		}
		c.JSON(http.StatusOK, chat.IdRange{Start: 0, End: 2})
	})
	r.GET("/api/chats/:chatId/entries/:kind", func(c *gin.Context) {
		if !authorized(c) {
			return
		}
		assert.Equal(t, "audio", c.Param("kind"))
		assert.Equal(t, "0", c.Query("start"))
		assert.Equal(t, "32", c.Query("end"))
		c.JSON(http.StatusOK, []chat.Entry{
			{Id: 0, ChatId: "c1", Kind: chat.EntryKindAudio, BeginsAt: t0, ContentId: "a"},
			{Id: 1, ChatId: "c1", Kind: chat.EntryKindAudio, BeginsAt: t0.Add(time.Second), StreamId: "s"},
		})
	})
	r.GET("/api/chats/:chatId/entries/:kind/watch", func(c *gin.Context) {
		if !authorized(c) {
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_ = conn.WriteJSON(chat.IdRange{Start: 0, End: 2})
		_ = conn.WriteJSON(chat.IdRange{Start: 0, End: 3})
		_, _, _ = conn.ReadMessage()
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func givenRepository(srv *httptest.Server) *Repository {
	conf := NewConfiguration()
	conf.Url = srv.URL + "/api"
	conf.Token = "secret"
	return New(conf)
}

func TestRepository_GetChat(t *testing.T) {
	repo := givenRepository(givenServer(t))

	actual, err := repo.GetChat(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "One", actual.Title)

	_, err = repo.GetChat(context.Background(), "other")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestRepository_GetChat_unauthorized(t *testing.T) {
	srv := givenServer(t)
	conf := NewConfiguration()
	conf.Url = srv.URL + "/api"
	repo := New(conf)

	_, err := repo.GetChat(context.Background(), "c1")
	assert.ErrorIs(t, err, chat.ErrAccessDenied)
}

func TestRepository_GetRules(t *testing.T) {
	repo := givenRepository(givenServer(t))

	actual, err := repo.GetRules(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, chat.Rules{CanRead: true, CanWrite: true}, actual)

	actual, err = repo.GetRules(context.Background(), "forbidden")
	require.NoError(t, err)
	assert.Equal(t, chat.Rules{}, actual)
}

func TestRepository_readsEntries(t *testing.T) {
	repo := givenRepository(givenServer(t))
	reader := chat.NewEntryReader(repo, "c1", chat.EntryKindAudio)

	var ids []int64
	for e, err := range reader.ReadAll(context.Background(), chat.IdRange{Start: 0, End: 2}) {
		require.NoError(t, err)
		ids = append(ids, e.Id)
	}

	assert.Equal(t, []int64{0, 1}, ids)
}

func TestRepository_WatchIdRange(t *testing.T) {
	repo := givenRepository(givenServer(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	actual, err := repo.WatchIdRange(ctx, "c1", chat.EntryKindAudio, chat.IdRange{Start: 0, End: 2})
	require.NoError(t, err)
	assert.Equal(t, chat.IdRange{Start: 0, End: 3}, actual)
}
