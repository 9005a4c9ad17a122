package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	log "github.com/echocat/slf4g"
	"github.com/gin-gonic/gin"

	"github.com/blaubaer/chat-audio/pkg/activechats"
	"github.com/blaubaer/chat-audio/pkg/activity"
	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/metrics"
	"github.com/blaubaer/chat-audio/pkg/notification"
	"github.com/blaubaer/chat-audio/pkg/observable"
	"github.com/blaubaer/chat-audio/pkg/playback"
	"github.com/blaubaer/chat-audio/pkg/recording"
)

// Server is the local control API of the running application.
type Server struct {
	Configuration Configuration

	ActiveChats   *activechats.Manager
	Languages     *recording.Languages
	Recorder      recording.Recorder
	Players       *playback.Players
	Activities    *activity.Activities
	Notifications *notification.Notifications
	Enabled       *observable.Latch
}

func (this *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), this.logRequest)

	r.GET("/metrics", metrics.Handler())

	v1 := r.Group("/v1")
	v1.GET("/status", this.getStatus)
	v1.POST("/enable", this.enable)
	v1.GET("/notifications", this.getNotifications)
	v1.DELETE("/notifications", this.clearNotifications)

	v1.GET("/chats", this.getActiveChats)
	v1.GET("/chats/:chatId", this.getChatState)
	v1.DELETE("/chats/:chatId", this.removeActiveChat)
	v1.PUT("/chats/:chatId/listening", this.setListening)
	v1.PUT("/chats/:chatId/language", this.setLanguage)
	v1.GET("/chats/:chatId/activity", this.getActivity)
	v1.DELETE("/listening", this.clearListening)

	v1.PUT("/recording", this.setRecording)
	v1.DELETE("/recording", this.stopRecording)

	v1.GET("/playback", this.getPlayback)
	v1.POST("/playback/historical", this.startHistoricalPlayback)
	v1.DELETE("/playback", this.stopPlayback)

	return r
}

func (this *Server) logRequest(c *gin.Context) {
	c.Next()
	l := log.With("method", c.Request.Method).
		With("path", c.FullPath()).
		With("status", c.Writer.Status())
	if len(c.Errors) > 0 {
		l.WithError(c.Errors.Last()).Info("Request failed.")
	} else {
		l.Debug("Request handled.")
	}
}

// Run serves the API until ctx is done. An empty listen address disables it.
func (this *Server) Run(ctx context.Context) error {
	if this.Configuration.Listen == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	ln, err := net.Listen("tcp", this.Configuration.Listen)
	if err != nil {
		return fmt.Errorf("cannot listen at %s: %w", this.Configuration.Listen, err)
	}
	return this.Serve(ctx, ln)
}

func (this *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:     this.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(ln)
	}()
	log.With("address", ln.Addr()).
		Info("Control API is listening.")

	select {
	case err := <-served:
		return fmt.Errorf("control API stopped unexpectedly: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), this.Configuration.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).
			Warn("Cannot shutdown control API gracefully.")
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (this *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

func chatIdOf(c *gin.Context) (chat.Id, error) {
	var result chat.Id
	if err := result.Set(c.Param("chatId")); err != nil {
		return chat.None, badRequest(err)
	}
	if result.IsNone() {
		return chat.None, badRequest(fmt.Errorf("chatId required"))
	}
	return result, nil
}
