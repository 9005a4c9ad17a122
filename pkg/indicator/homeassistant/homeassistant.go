package homeassistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	log "github.com/echocat/slf4g"
	"github.com/go-resty/resty/v2"

	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/common"
	"github.com/blaubaer/chat-audio/pkg/credentials"
	"github.com/blaubaer/chat-audio/pkg/indicator"
)

var ErrUnauthorized = errors.New("unauthorized at Home Assistant")

// HomeAssistant publishes the on air state as an input_boolean entity of a
// Home Assistant instance. The chat being recorded is available as
// attribute of it.
type HomeAssistant struct {
	Clocks clock.Clocks

	// Prompt asks the user for missing credentials. If nil missing
	// credentials are an error.
	Prompt func(of *string, promptName string, canBeEmpty, isPassword bool) error

	conf         *Configuration
	saveConfFunc func() error
	mutex        sync.RWMutex

	lastState atomic.Pointer[state]
	client    *resty.Client
}

func (this *HomeAssistant) Initialize(ctx context.Context, conf *Configuration, saveConfFunc func() error) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	this.conf = conf
	this.saveConfFunc = saveConfFunc
	this.Clocks = this.Clocks.OrDefault()

	cred, err := this.resolveCredentials(ctx)
	if err != nil {
		return err
	}
	this.client = this.newClient(cred)
	return nil
}

func (this *HomeAssistant) newClient(cred credentials.Credentials) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(cred.HomeAssistantServer, "/")).
		SetTimeout(this.conf.Timeout).
		SetAuthToken(cred.HomeAssistantToken).
		SetHeader("Accept", "application/json")
}

func (this *HomeAssistant) Ensure(ctx context.Context, status indicator.Status) error {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	if this.client == nil {
		return fmt.Errorf("home assistant indicator is not initialized")
	}

	target := state{
		timestamp: this.Clocks.System.Now(),
		status:    status,
	}
	logger := log.With("entityId", this.conf.EntityId).
		With("status", status)

	if v := this.lastState.Load(); v != nil {
		if v.timestamp.Add(this.conf.DeadZoneInterval).After(target.timestamp) && v.isEqualTo(&target) {
			logger.Debug("Entity is already in requested state (while dead zone timeout). No updated needed.")
			return nil
		}
	}

	var gRsp stateGetResponse
	rsp, err := this.client.R().
		SetContext(ctx).
		SetPathParam("entityId", this.conf.EntityId).
		SetResult(&gRsp).
		Get("/api/states/{entityId}")
	if err != nil {
		return fmt.Errorf("cannot retrieve state of %s: %w", this.conf.EntityId, err)
	}

	attributes := map[string]any{}
	forceUpdate := false

	switch rsp.StatusCode() {
	case http.StatusOK:
		current := state{
			timestamp: target.timestamp,
			status:    gRsp.status(),
		}
		if !target.isEqualTo(&current) {
			break
		}
		logger.Debug("Entity is already in requested state. No updated needed.")
		this.lastState.Store(&current)
		return nil
	case http.StatusNotFound:
		logger.Info("Entity not found. It will be created now...")
		forceUpdate = true
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: cannot retrieve state of %s", ErrUnauthorized, this.conf.EntityId)
	default:
		return fmt.Errorf("cannot retrieve state of %s: unexpected status code: %d - %s", this.conf.EntityId, rsp.StatusCode(), rsp.Status())
	}

	if v := gRsp.Attributes; v != nil && !forceUpdate {
		attributes = v
	} else {
		attributes["icon"] = "mdi:microphone-message"
		attributes["friendly_name"] = strings.TrimPrefix(this.conf.EntityId, "input_boolean.")
	}
	attributes["editable"] = false
	attributes[attrChatId] = status.ChatId.String()

	sRsp, err := this.client.R().
		SetContext(ctx).
		SetPathParam("entityId", this.conf.EntityId).
		SetBody(statePostRequest{
			State:      status.State,
			Attributes: attributes,
		}).
		Post("/api/states/{entityId}")
	if err != nil {
		return fmt.Errorf("cannot update state of %s: %w", this.conf.EntityId, err)
	}
	switch sRsp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: cannot update state of %s", ErrUnauthorized, this.conf.EntityId)
	default:
		return fmt.Errorf("cannot update state of %s: unexpected status code: %d - %s", this.conf.EntityId, sRsp.StatusCode(), sRsp.Status())
	}

	logger.Debug("Entity updated.")
	this.lastState.Store(&target)

	return nil
}

func (this *HomeAssistant) loadCredentials() (credentials.Credentials, error) {
	var v credentials.Credentials
	if _, err := v.ReadFromStore(); err != nil {
		return credentials.Credentials{}, err
	}
	if this.conf.Server != "" || this.conf.Token != "" {
		// Explicit configured ones win over the stored ones.
		v.HomeAssistantServer, v.HomeAssistantToken = "", ""
	}
	v.Complete(credentials.Credentials{
		HomeAssistantServer: this.conf.Server,
		HomeAssistantToken:  this.conf.Token,
	})
	return v, nil
}

func (this *HomeAssistant) storeCredentials(cred credentials.Credentials) error {
	supported, err := cred.WriteToStore()
	if err != nil {
		return err
	}
	if supported {
		return nil
	}

	this.conf.Server = cred.HomeAssistantServer
	this.conf.Token = cred.HomeAssistantToken
	if this.saveConfFunc == nil {
		return nil
	}
	return this.saveConfFunc()
}

// check reports whether server and token could be used to access the API.
func (this *HomeAssistant) check(ctx context.Context, cred credentials.Credentials) (serverOk, tokenOk bool, err error) {
	rsp, err := this.newClient(cred).R().
		SetContext(ctx).
		Get("/api/")
	if err != nil {
		if common.IsCancellation(err) {
			return false, false, err
		}
		log.With("server", cred.HomeAssistantServer).
			WithError(err).
			Warn("Cannot access Home Assistant.")
		return false, false, nil
	}
	switch rsp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true, false, nil
	case http.StatusOK:
		return true, true, nil
	default:
		return false, false, nil
	}
}

func (this *HomeAssistant) resolveCredentials(ctx context.Context) (credentials.Credentials, error) {
	fail := func(err error) (credentials.Credentials, error) {
		return credentials.Credentials{}, err
	}

	cred, err := this.loadCredentials()
	if err != nil {
		return fail(err)
	}

	if !cred.IsHomeAssistantZero() {
		serverOk, tokenOk, err := this.check(ctx, cred)
		if err != nil {
			return fail(err)
		}
		if serverOk && tokenOk {
			return cred, nil
		}
		if this.Prompt == nil {
			if !serverOk {
				return fail(fmt.Errorf("cannot access Home Assistant at %s", cred.HomeAssistantServer))
			}
			return fail(fmt.Errorf("%w: %s", ErrUnauthorized, cred.HomeAssistantServer))
		}
	} else if this.Prompt == nil {
		return fail(fmt.Errorf("server URL and long live token required to access Home Assistant"))
	}

	log.Info("Server URL and long live token required to access Home Assistant.")
	for {
		cred.HomeAssistantServer = ""
		cred.HomeAssistantToken = ""
		if err := this.Prompt(&cred.HomeAssistantServer, fmt.Sprintf("Server URL (empty = %s)", DefaultServer), true, false); err != nil {
			return fail(fmt.Errorf("cannot request server url: %w", err))
		}
		if cred.HomeAssistantServer == "" {
			cred.HomeAssistantServer = DefaultServer
		}
		if err := this.Prompt(&cred.HomeAssistantToken, "Token", false, true); err != nil {
			return fail(fmt.Errorf("cannot request token: %w", err))
		}

		serverOk, tokenOk, err := this.check(ctx, cred)
		if err != nil {
			return fail(err)
		}
		if serverOk && tokenOk {
			if err := this.storeCredentials(cred); err != nil {
				return fail(fmt.Errorf("cannot store credentials: %w", err))
			}
			return cred, nil
		}

		if !serverOk {
			log.With("server", cred.HomeAssistantServer).
				Error("Provided Home Assistant's server URL is invalid.")
		} else {
			log.With("server", cred.HomeAssistantServer).
				Error("Provided Home Assistant's long live token is invalid.")
		}
	}
}

func (this *HomeAssistant) Dispose() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.conf = nil
	this.saveConfFunc = nil
	this.client = nil
	this.lastState.Store(nil)
	return nil
}

func (this *HomeAssistant) GetType() indicator.Type {
	return indicator.TypeHomeAssistant
}
