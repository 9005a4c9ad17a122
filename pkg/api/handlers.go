package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blaubaer/chat-audio/pkg/activechats"
	"github.com/blaubaer/chat-audio/pkg/activity"
	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/notification"
	"github.com/blaubaer/chat-audio/pkg/observable"
	"github.com/blaubaer/chat-audio/pkg/playback"
	"github.com/blaubaer/chat-audio/pkg/recording"
)

type statusResponse struct {
	Enabled       bool                        `json:"enabled"`
	Recorder      string                      `json:"recorder"`
	ActiveChats   activechats.ActiveChats     `json:"activeChats"`
	Playback      playback.State              `json:"playback"`
	Notifications []notification.Notification `json:"notifications"`
}

func (this *Server) getStatus(c *gin.Context) {
	result := statusResponse{
		Enabled:     this.Enabled.IsSet(),
		ActiveChats: this.ActiveChats.Get(),
		Playback:    this.Players.State().Get(),
	}
	if v := this.Recorder; v != nil {
		result.Recorder = v.State().Get().String()
	}
	if v := this.Notifications; v != nil {
		result.Notifications = v.Get()
	}
	c.JSON(http.StatusOK, result)
}

func (this *Server) enable(c *gin.Context) {
	this.Enabled.Set()
	c.Status(http.StatusNoContent)
}

func (this *Server) getNotifications(c *gin.Context) {
	var result []notification.Notification
	if v := this.Notifications; v != nil {
		result = v.Get()
	}
	c.JSON(http.StatusOK, gin.H{"notifications": result})
}

func (this *Server) clearNotifications(c *gin.Context) {
	if v := this.Notifications; v != nil {
		v.Clear()
	}
	c.Status(http.StatusNoContent)
}

func (this *Server) getActiveChats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"activeChats": this.ActiveChats.Get()})
}

func (this *Server) getChatState(c *gin.Context) {
	chatId, err := chatIdOf(c)
	if err != nil {
		this.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":    this.ActiveChats.ChatState(chatId),
		"language": this.Languages.Of(chatId),
	})
}

func (this *Server) removeActiveChat(c *gin.Context) {
	chatId, err := chatIdOf(c)
	if err != nil {
		this.fail(c, err)
		return
	}
	if err := this.ActiveChats.RemoveActiveChat(c.Request.Context(), chatId); err != nil {
		this.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setListeningRequest struct {
	Listening *bool `json:"listening" binding:"required"`
}

func (this *Server) setListening(c *gin.Context) {
	chatId, err := chatIdOf(c)
	if err != nil {
		this.fail(c, err)
		return
	}
	var req setListeningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		this.fail(c, badRequest(err))
		return
	}
	if err := this.ActiveChats.SetListeningState(c.Request.Context(), chatId, *req.Listening); err != nil {
		this.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, this.ActiveChats.ChatState(chatId))
}

func (this *Server) clearListening(c *gin.Context) {
	if err := this.ActiveChats.ClearListeningState(c.Request.Context()); err != nil {
		this.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setLanguageRequest struct {
	Language string `json:"language"`
}

// setLanguage with an empty language resets the chat to the default one.
func (this *Server) setLanguage(c *gin.Context) {
	chatId, err := chatIdOf(c)
	if err != nil {
		this.fail(c, err)
		return
	}
	var req setLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		this.fail(c, badRequest(err))
		return
	}
	var language recording.Language
	if req.Language != "" {
		if err := language.Set(req.Language); err != nil {
			this.fail(c, badRequest(err))
			return
		}
	}
	this.Languages.Set(chatId, language)
	c.JSON(http.StatusOK, gin.H{"language": this.Languages.Of(chatId)})
}

type setRecordingRequest struct {
	ChatId     chat.Id `json:"chatId" binding:"required"`
	PushToTalk bool    `json:"pushToTalk"`
}

func (this *Server) setRecording(c *gin.Context) {
	var req setRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		this.fail(c, badRequest(err))
		return
	}
	if err := this.ActiveChats.SetRecordingChatId(c.Request.Context(), req.ChatId, req.PushToTalk); err != nil {
		this.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, this.ActiveChats.ChatState(req.ChatId))
}

func (this *Server) stopRecording(c *gin.Context) {
	if err := this.ActiveChats.SetRecordingChatId(c.Request.Context(), chat.None, false); err != nil {
		this.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (this *Server) getPlayback(c *gin.Context) {
	c.JSON(http.StatusOK, this.Players.State().Get())
}

type startHistoricalPlaybackRequest struct {
	ChatId  chat.Id   `json:"chatId" binding:"required"`
	StartAt time.Time `json:"startAt" binding:"required"`
}

func (this *Server) startHistoricalPlayback(c *gin.Context) {
	var req startHistoricalPlaybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		this.fail(c, badRequest(err))
		return
	}
	if err := this.Players.StartHistoricalPlayback(c.Request.Context(), req.ChatId, req.StartAt); err != nil {
		this.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, this.Players.State().Get())
}

func (this *Server) stopPlayback(c *gin.Context) {
	if err := this.Players.StopPlayback(c.Request.Context()); err != nil {
		this.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type activityResponse struct {
	ChatId          chat.Id            `json:"chatId"`
	ActiveAuthorIds activity.AuthorIds `json:"activeAuthorIds"`
	Version         uint64             `json:"version"`
}

// getActivity returns the authors currently talking in the chat. With
// "after" set to a previously returned version it waits up to "wait" for a
// newer one.
func (this *Server) getActivity(c *gin.Context) {
	chatId, err := chatIdOf(c)
	if err != nil {
		this.fail(c, err)
		return
	}
	var after *uint64
	if plain := c.Query("after"); plain != "" {
		v, err := strconv.ParseUint(plain, 10, 64)
		if err != nil {
			this.fail(c, badRequest(fmt.Errorf("illegal after: %w", err)))
			return
		}
		after = &v
	}
	wait := this.Configuration.MaxActivityWait
	if plain := c.Query("wait"); plain != "" {
		v, err := time.ParseDuration(plain)
		if err != nil || v < 0 {
			this.fail(c, badRequest(fmt.Errorf("illegal wait: %s", plain)))
			return
		}
		wait = min(v, wait)
	}

	lease := this.Activities.Acquire(chatId)
	defer lease.Release()
	state := lease.Chat().State()

	snap := state.Snapshot()
	if after != nil && *after == snap.Version && wait > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		if snap, err = state.Next(ctx, observable.Snapshot[activity.AuthorIds]{Version: *after}); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			this.fail(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, activityResponse{
		ChatId:          chatId,
		ActiveAuthorIds: snap.Value,
		Version:         snap.Version,
	})
}
