package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"dario.cat/mergo"
	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/activechats"
	"github.com/blaubaer/chat-audio/pkg/activity"
	"github.com/blaubaer/chat-audio/pkg/api"
	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/gate"
	"github.com/blaubaer/chat-audio/pkg/idle"
	"github.com/blaubaer/chat-audio/pkg/indicator/facade"
	"github.com/blaubaer/chat-audio/pkg/listening"
	"github.com/blaubaer/chat-audio/pkg/media"
	"github.com/blaubaer/chat-audio/pkg/notification"
	"github.com/blaubaer/chat-audio/pkg/observable"
	"github.com/blaubaer/chat-audio/pkg/playback"
	"github.com/blaubaer/chat-audio/pkg/recording"
)

const (
	OperationRecording  = "recording"
	OperationListening  = "listening"
	OperationPlayback   = "playback"
	OperationIndicator  = "indicator"
	OperationActivityGc = "activity-gc"
	OperationApi        = "api"
)

func NewApp() *App {
	return &App{
		config: NewConfiguration(),
	}
}

// App wires all components of the chat audio session engine and runs
// them.
type App struct {
	ConfigurationFile string
	Clocks            clock.Clocks

	// OnPrompt is called before anything interacts with the user at the
	// terminal. The returned function is called afterwards.
	OnPrompt func() (resume func())

	// Repository, Recorder, Engine and Resolver are created from the
	// configuration if not set.
	Repository chat.Repository
	Recorder   recording.Recorder
	Engine     playback.Engine
	Resolver   media.Resolver

	ActiveChats   *activechats.Manager
	Languages     *recording.Languages
	Players       *playback.Players
	Activities    *activity.Activities
	Notifications *notification.Notifications
	Indicator     facade.Facade
	Enabled       observable.Latch

	Gate                gate.Gate
	RecordingReconciler *recording.Reconciler
	ListeningReconciler *listening.Reconciler
	Api                 *api.Server

	configFromFlags Configuration
	config          Configuration
	initialized     bool
	mutex           sync.Mutex
}

func (this *App) SetupConfiguration(using common.FlagHolder) {
	this.configFromFlags.SetupConfiguration(using)

	using.Flag("configuration", "Defines the file from which the configuration should be loaded and/or stored to.").
		Short('c').
		Envar("CA_CONFIGURATION").
		StringVar(&this.ConfigurationFile)
}

func (this *App) Configuration() Configuration {
	return this.config
}

func (this *App) configurationFile() string {
	if v := this.ConfigurationFile; v != "" {
		return v
	}
	return defaultConfigurationFile()
}

// Initialize loads the configuration, merges the flags into it and creates
// all components.
func (this *App) Initialize(ctx context.Context) (rErr error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.initialized {
		return nil
	}

	success := false
	defer func() {
		if !success {
			if err := this.dispose(); err != nil && rErr == nil {
				rErr = err
			}
		}
	}()

	if err := this.config.loadFromFile(this.configurationFile(), true); err != nil {
		return err
	}
	if err := mergo.Merge(&this.config, this.configFromFlags, mergo.WithOverride); err != nil {
		return fmt.Errorf("cannot merge configuration from flags: %w", err)
	}
	if err := this.config.Validate(); err != nil {
		return err
	}

	if err := this.initializeComponents(ctx); err != nil {
		return err
	}

	if err := this.Indicator.Initialize(ctx, &this.config.Indicator, this.alwaysSaveConf); err != nil {
		return fmt.Errorf("cannot initialize indicator: %w", err)
	}

	if err := this.saveConf(false); err != nil {
		return err
	}

	if this.config.Enabled {
		this.Enabled.Set()
	}

	this.initialized = true
	success = true
	return nil
}

func (this *App) initializeComponents(ctx context.Context) error {
	conf := &this.config
	this.Clocks = this.Clocks.OrDefault()

	if this.Repository == nil {
		v, err := conf.Chats.NewRepository()
		if err != nil {
			return err
		}
		this.Repository = v
	}
	if this.Resolver == nil {
		this.Resolver = conf.Chats.NewResolver()
	}
	if this.Recorder == nil {
		v := conf.Recording.NewCommand()
		v.Clocks = this.Clocks
		this.Recorder = v
	}
	if this.Engine == nil {
		v := conf.Playback.NewCommand()
		v.Clocks = this.Clocks
		this.Engine = v
	}

	store, err := conf.State.NewStore(defaultStateFile())
	if err != nil {
		return err
	}
	this.ActiveChats = activechats.NewManager(this.Repository, this.Clocks, store)
	if err := this.ActiveChats.Restore(ctx); err != nil {
		log.WithError(err).
			Warn("Cannot restore active chats. Starting without any.")
	}

	g, err := conf.Gate.New(this.OnPrompt)
	if err != nil {
		return err
	}
	this.Gate = g

	this.Notifications = notification.NewNotifications(this.Clocks)
	this.Languages = recording.NewLanguages(conf.Recording.DefaultLanguage)
	this.Players = playback.NewPlayers(this.Repository, this.Engine, this.Resolver, this.Clocks, conf.Playback.Options)
	this.Players.OnRealtimeEnded = this.stopListening
	this.Activities = activity.NewActivities(this.Repository, this.Clocks)
	this.Activities.KeepAlive = conf.Activity.KeepAlive

	source := &idle.ChatActivitySource{Repository: this.Repository, Clocks: this.Clocks}

	this.RecordingReconciler = recording.NewReconciler(this.ActiveChats, this.Recorder, this.Languages, this.Gate, conf.Recording.Idle, source, this.Clocks)
	this.RecordingReconciler.OnError = this.Notifications.Publisher(OperationRecording)

	this.ListeningReconciler = listening.NewReconciler(this.ActiveChats, this.Players, this.Gate, conf.Listening.IdleOptions(), source, this.Clocks)
	this.ListeningReconciler.Debounce = conf.Listening.Debounce

	this.Indicator.Clocks = this.Clocks
	this.Indicator.Prompt = this.prompt

	this.Api = &api.Server{
		Configuration: conf.Api,
		ActiveChats:   this.ActiveChats,
		Languages:     this.Languages,
		Recorder:      this.Recorder,
		Players:       this.Players,
		Activities:    this.Activities,
		Notifications: this.Notifications,
		Enabled:       &this.Enabled,
	}

	return nil
}

func (this *App) stopListening(ctx context.Context, chatId chat.Id) {
	if err := this.ActiveChats.SetListeningState(ctx, chatId, false); err != nil {
		log.With("chatId", chatId).
			WithError(err).
			Warn("Cannot stop listening to chat whose playback ended.")
	}
}

func (this *App) prompt(of *string, promptName string, canBeEmpty, isPassword bool) error {
	if f := this.OnPrompt; f != nil {
		resume := f()
		defer resume()
	}
	return common.RequestStringContentIfRequiredFromTerminal(of, promptName, canBeEmpty, isPassword)
}

// Operations of the initialized App.
func (this *App) Operations() []Operation {
	return []Operation{
		{OperationRecording, this.RecordingReconciler.Run},
		{OperationListening, this.ListeningReconciler.Run},
		{OperationPlayback, this.Players.Run},
		{OperationIndicator, func(ctx context.Context) error {
			return this.Indicator.Run(ctx, this.Recorder.State())
		}},
		{OperationActivityGc, func(ctx context.Context) error {
			return this.Activities.Run(ctx, this.config.Activity.CollectInterval)
		}},
	}
}

// Run all operations until ctx is done. The control API is not gated by
// Enabled as it is the way to enable the App.
func (this *App) Run(ctx context.Context) error {
	if !this.initialized {
		return fmt.Errorf("app is not initialized")
	}

	gated := &Orchestrator{
		Operations:    this.Operations(),
		Enabled:       &this.Enabled,
		Clocks:        this.Clocks,
		RetryMinDelay: this.config.Retry.MinDelay,
		RetryMaxDelay: this.config.Retry.MaxDelay,
		OnError:       this.Notifications.Publish,
	}
	ungated := &Orchestrator{
		Operations:    []Operation{{OperationApi, this.Api.Run}},
		Clocks:        this.Clocks,
		RetryMinDelay: this.config.Retry.MinDelay,
		RetryMaxDelay: this.config.Retry.MaxDelay,
		OnError:       this.Notifications.Publish,
	}

	if !this.Enabled.IsSet() {
		log.With("api", this.config.Api.Listen).
			Info("Audio is not enabled yet. Enable it using the control API.")
	}

	done := make(chan error, 1)
	go func() { done <- ungated.Run(ctx) }()
	err := gated.Run(ctx)
	if apiErr := <-done; err == nil {
		err = apiErr
	}
	return err
}

func (this *App) alwaysSaveConf() error {
	return this.saveConf(true)
}

func (this *App) saveConf(always bool) error {
	if this.config.PreventAutoSave {
		log.Debug("Automatically save of configuration disabled.")
		return nil
	}

	fn := this.configurationFile()
	if !always {
		_, err := os.Stat(fn)
		if os.IsNotExist(err) {
			log.With("file", fn).Info("Configuration absent.")
		} else if err != nil {
			return err
		} else {
			return nil
		}
	}

	if err := this.config.saveToFile(fn); err != nil {
		return err
	}

	log.With("file", fn).Info("Configuration saved.")

	return nil
}

func (this *App) Dispose() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.initialized = false
	return this.dispose()
}

func (this *App) dispose() error {
	if v := this.Activities; v != nil {
		v.Close()
	}
	return this.Indicator.Dispose()
}
