package hue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amimof/huego"
	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/credentials"
	"github.com/blaubaer/chat-audio/pkg/indicator"
)

const appName = "github.com/blaubaer/chat-audio"

const (
	linkButtonNotPressed = 101
	pairRetryInterval    = time.Second
)

// Hue switches all matching lights and groups of a Philips Hue bridge on
// while a chat is recorded.
type Hue struct {
	Clocks clock.Clocks

	conf         *Configuration
	saveConfFunc func() error

	lights      []huego.Light
	groups      []huego.Group
	credentials credentials.Credentials
	mutex       sync.Mutex
}

func (this *Hue) Initialize(ctx context.Context, conf *Configuration, saveConfFunc func() error) error {
	this.conf = conf
	this.saveConfFunc = saveConfFunc
	this.Clocks = this.Clocks.OrDefault()

	v, err := this.resolveCredentials(ctx)
	if err != nil {
		return err
	}
	this.credentials = v

	return this.Update()
}

// Update discovers the lights and groups again.
func (this *Hue) Update() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	bridge, err := this.bridge()
	if err != nil {
		return err
	}

	lights, err := this.discoverLights(bridge)
	if err != nil {
		return err
	}
	groups, err := this.discoverGroups(bridge)
	if err != nil {
		return err
	}

	this.lights = lights
	this.groups = groups

	log.With("bridge", bridge.Host).
		With("lights", len(lights)).
		With("groups", len(groups)).
		Debug("Hue targets discovered.")

	return nil
}

func (this *Hue) discoverLights(bridge *huego.Bridge) (result []huego.Light, _ error) {
	if this.conf.Kinds.Has(KindLight) {
		candidates, err := bridge.GetLights()
		if err != nil {
			return nil, fmt.Errorf("cannot discover lights of bridge %s: %w", bridge.Host, err)
		}
		for _, candidate := range candidates {
			if this.conf.Name.MatchString(candidate.Name) {
				if candidate.State == nil {
					candidate.State = &huego.State{}
				}
				result = append(result, candidate)
			}
		}
	}
	return
}

func (this *Hue) discoverGroups(bridge *huego.Bridge) (result []huego.Group, _ error) {
	if this.conf.Kinds.Has(KindGroup) {
		candidates, err := bridge.GetGroups()
		if err != nil {
			return nil, fmt.Errorf("cannot discover groups of bridge %s: %w", bridge.Host, err)
		}
		for _, candidate := range candidates {
			if this.conf.Name.MatchString(candidate.Name) {
				if candidate.State == nil {
					candidate.State = &huego.State{}
				}
				result = append(result, candidate)
			}
		}
	}
	return
}

func (this *Hue) Ensure(ctx context.Context, status indicator.Status) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	bridge, err := this.bridge()
	if err != nil {
		return err
	}

	for i := range this.lights {
		if err := ctx.Err(); err != nil {
			return err
		}
		v := &this.lights[i]
		newState, err := desiredState(this.conf, status.State, v.State)
		if err != nil {
			return fmt.Errorf("cannot ensure state of light %q#%d: %w", v.Name, v.ID, err)
		}
		if newState != nil {
			if _, err := bridge.SetLightState(v.ID, *newState); err != nil {
				return fmt.Errorf("cannot switch light %q#%d %v: %w", v.Name, v.ID, status.State, err)
			}
			v.State = newState
		}
	}

	for i := range this.groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		v := &this.groups[i]
		newState, err := desiredState(this.conf, status.State, v.State)
		if err != nil {
			return fmt.Errorf("cannot ensure state of group %q#%d: %w", v.Name, v.ID, err)
		}
		if newState != nil {
			if _, err := bridge.SetGroupState(v.ID, *newState); err != nil {
				return fmt.Errorf("cannot switch group %q#%d %v: %w", v.Name, v.ID, status.State, err)
			}
			v.State = newState
		}
	}

	return nil
}

// desiredState returns nil if current already matches state.
func desiredState(conf *Configuration, state indicator.State, current *huego.State) (*huego.State, error) {
	switch state {
	case indicator.StateOn:
		if !current.On || current.Bri != conf.Brightness || current.Hue != conf.Hue || current.Sat != conf.Saturation {
			return &huego.State{
				On:  true,
				Bri: conf.Brightness,
				Hue: conf.Hue,
				Sat: conf.Saturation,
			}, nil
		}
	case indicator.StateOff:
		if current.On {
			return &huego.State{On: false}, nil
		}
	default:
		return nil, fmt.Errorf("illegal state: %v", state)
	}
	return nil, nil
}

func (this *Hue) bridge() (*huego.Bridge, error) {
	v := this.credentials
	if v.IsHueZero() {
		return nil, fmt.Errorf("not paired with hue bridge")
	}
	return huego.New(v.HueBridge, v.HueUser), nil
}

func (this *Hue) resolveCredentials(ctx context.Context) (credentials.Credentials, error) {
	if u := this.conf.User; u != "" {
		bridge, err := this.discoverBridge()
		if err != nil {
			return credentials.Credentials{}, err
		}
		return credentials.Credentials{
			HueBridge: bridge.Host,
			HueUser:   u,
		}, nil
	}

	if this.conf.Pair {
		return this.pair(ctx)
	}

	v, err := this.readCredentials()
	if err != nil {
		return credentials.Credentials{}, err
	}
	if !v.IsHueZero() {
		return v, nil
	}

	return this.pair(ctx)
}

func (this *Hue) discoverBridge() (*huego.Bridge, error) {
	if this.conf.Bridge != "" {
		return &huego.Bridge{
			Host: this.conf.Bridge,
		}, nil
	}

	result, err := huego.Discover()
	if err != nil {
		return nil, fmt.Errorf("cannot discover hue bridge: %w", err)
	}
	return result, nil
}

func (this *Hue) pair(ctx context.Context) (credentials.Credentials, error) {
	bridge, err := this.discoverBridge()
	if err != nil {
		return credentials.Credentials{}, err
	}

	log.With("bridge", bridge.Host).
		Info("Wait for hue link button been pressed...")
	for {
		user, err := bridge.CreateUser(appName)
		var apiErr *huego.APIError
		if errors.As(err, &apiErr) && apiErr.Type == linkButtonNotPressed {
			if err := clock.Sleep(ctx, this.Clocks.Cpu, pairRetryInterval); err != nil {
				return credentials.Credentials{}, err
			}
			continue
		}
		if err != nil {
			return credentials.Credentials{}, fmt.Errorf("was not able to pair with %s: %w", bridge.Host, err)
		}

		v := credentials.Credentials{
			HueBridge: bridge.Host,
			HueUser:   user,
		}
		if err := this.storeCredentials(v); err != nil {
			log.WithError(err).
				Warn("Cannot store credentials. The app will work now, but next time the pairing might be required again.")
		}

		log.With("bridge", bridge.Host).
			Info("Successful paired.")
		return v, nil
	}
}

func (this *Hue) readCredentials() (credentials.Credentials, error) {
	var v credentials.Credentials
	if _, err := v.ReadFromStore(); err != nil {
		return credentials.Credentials{}, err
	}
	v.Complete(credentials.Credentials{
		HueBridge: this.conf.Bridge,
		HueUser:   this.conf.User,
	})
	return v, nil
}

func (this *Hue) storeCredentials(v credentials.Credentials) error {
	var stored credentials.Credentials
	if _, err := stored.ReadFromStore(); err != nil {
		return err
	}
	stored.HueBridge, stored.HueUser = v.HueBridge, v.HueUser

	supported, err := stored.WriteToStore()
	if err != nil {
		return err
	}
	if supported {
		return nil
	}

	this.conf.Bridge = v.HueBridge
	this.conf.User = v.HueUser
	if this.saveConfFunc == nil {
		return nil
	}
	return this.saveConfFunc()
}

func (this *Hue) Dispose() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.conf = nil
	this.saveConfFunc = nil
	this.lights = nil
	this.groups = nil
	return nil
}

func (this *Hue) GetType() indicator.Type {
	return indicator.TypeHue
}
