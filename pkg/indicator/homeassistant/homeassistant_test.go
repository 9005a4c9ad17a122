package homeassistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/indicator"
)

const entityId = "input_boolean.test_on_air"

type givenServer struct {
	*httptest.Server

	mutex    sync.Mutex
	entities map[string]statePostRequest
	gets     int
	posts    int
}

func newServer(t *testing.T) *givenServer {
	gin.SetMode(gin.TestMode)
	result := &givenServer{entities: map[string]statePostRequest{}}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer secret" {
			c.AbortWithStatus(http.StatusUnauthorized)
		}
	})
	r.GET("/api/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API running."})
	})
	r.GET("/api/states/:entityId", func(c *gin.Context) {
		result.mutex.Lock()
		defer result.mutex.Unlock()
		result.gets++
		v, ok := result.entities[c.Param("entityId")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "Entity not found."})
			return
		}
		state, _ := v.State.MarshalText()
		c.JSON(http.StatusOK, gin.H{
			"entity_id":  c.Param("entityId"),
			"state":      string(state),
			"attributes": v.Attributes,
		})
	})
	r.POST("/api/states/:entityId", func(c *gin.Context) {
		var req statePostRequest
		if err := c.BindJSON(&req); err != nil {
			return
		}
		result.mutex.Lock()
		defer result.mutex.Unlock()
		result.posts++
		_, existed := result.entities[c.Param("entityId")]
		result.entities[c.Param("entityId")] = req
		if existed {
			c.JSON(http.StatusOK, req)
		} else {
			c.JSON(http.StatusCreated, req)
		}
	})

	result.Server = httptest.NewServer(r)
	t.Cleanup(result.Close)
	return result
}

func (this *givenServer) entity() statePostRequest {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.entities[entityId]
}

func (this *givenServer) calls() (gets, posts int) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.gets, this.posts
}

func givenInstance(t *testing.T, server *givenServer, token string) (*HomeAssistant, error) {
	clocks, _ := clock.NewFakeClocks(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	conf := NewConfiguration()
	conf.Server = server.URL
	conf.Token = token
	conf.EntityId = entityId

	instance := &HomeAssistant{Clocks: clocks}
	err := instance.Initialize(context.Background(), &conf, nil)
	t.Cleanup(func() { _ = instance.Dispose() })
	return instance, err
}

func TestHomeAssistant_Ensure(t *testing.T) {
	server := newServer(t)
	instance, err := givenInstance(t, server, "secret")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, instance.Ensure(ctx, indicator.Status{State: indicator.StateOn, ChatId: "c1"}))

	actual := server.entity()
	assert.Equal(t, indicator.StateOn, actual.State)
	assert.Equal(t, "c1", actual.Attributes["chatId"])
	assert.Equal(t, "mdi:microphone-message", actual.Attributes["icon"])
	assert.Equal(t, "test_on_air", actual.Attributes["friendly_name"])

	gets, posts := server.calls()
	assert.Equal(t, 1, gets)
	assert.Equal(t, 1, posts)

	// Within the dead zone nothing is requested at all.
	require.NoError(t, instance.Ensure(ctx, indicator.Status{State: indicator.StateOn, ChatId: "c1"}))
	gets, posts = server.calls()
	assert.Equal(t, 1, gets)
	assert.Equal(t, 1, posts)

	require.NoError(t, instance.Ensure(ctx, indicator.Status{State: indicator.StateOff}))
	actual = server.entity()
	assert.Equal(t, indicator.StateOff, actual.State)
	assert.Equal(t, "", actual.Attributes["chatId"])
	assert.Equal(t, "test_on_air", actual.Attributes["friendly_name"])

	gets, posts = server.calls()
	assert.Equal(t, 2, gets)
	assert.Equal(t, 2, posts)
}

func TestHomeAssistant_alreadyInState(t *testing.T) {
	server := newServer(t)
	server.entities[entityId] = statePostRequest{
		State:      indicator.StateOn,
		Attributes: map[string]any{"chatId": "c2"},
	}
	instance, err := givenInstance(t, server, "secret")
	require.NoError(t, err)

	require.NoError(t, instance.Ensure(context.Background(), indicator.Status{State: indicator.StateOn, ChatId: "c2"}))

	gets, posts := server.calls()
	assert.Equal(t, 1, gets)
	assert.Equal(t, 0, posts)
}

func TestHomeAssistant_invalidToken(t *testing.T) {
	server := newServer(t)

	_, err := givenInstance(t, server, "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestHomeAssistant_prompt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("credentials are stored in the Windows Credentials store")
	}
	server := newServer(t)
	clocks, _ := clock.NewFakeClocks(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	conf := NewConfiguration()
	conf.EntityId = entityId
	saved := 0

	instance := &HomeAssistant{
		Clocks: clocks,
		Prompt: func(of *string, promptName string, _, isPassword bool) error {
			if isPassword {
				*of = "secret"
			} else {
				*of = server.URL
			}
			return nil
		},
	}
	require.NoError(t, instance.Initialize(context.Background(), &conf, func() error {
		saved++
		return nil
	}))
	t.Cleanup(func() { _ = instance.Dispose() })

	assert.Equal(t, server.URL, conf.Server)
	assert.Equal(t, "secret", conf.Token)
	assert.Equal(t, 1, saved)
}

func TestNormalizeEntityIdPart(t *testing.T) {
	assert.Equal(t, "my_host_local", normalizeEntityIdPart(" My-Host.local "))
	assert.Equal(t, "a_b", normalizeEntityIdPart("a+b"))
}
