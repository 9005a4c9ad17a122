package idle

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/blaubaer/chat-audio/pkg/common"
)

var validate = validator.New()

// Options of a Monitor. The countdown starts IdleTimeoutBeforeCountdown
// after the last activity and ends with idle IdleTimeout after it.
type Options struct {
	IdleTimeout                time.Duration `yaml:"idleTimeout" validate:"gt=0"`
	IdleTimeoutBeforeCountdown time.Duration `yaml:"idleTimeoutBeforeCountdown" validate:"gt=0,ltefield=IdleTimeout"`
	CheckInterval              time.Duration `yaml:"checkInterval" validate:"gt=0"`
}

func (this Options) Validate() error {
	if err := validate.Struct(this); err != nil {
		return fmt.Errorf("illegal idle options %v: %w", this, err)
	}
	return nil
}

func (this Options) String() string {
	return fmt.Sprintf("idleTimeout=%v, beforeCountdown=%v, checkInterval=%v", this.IdleTimeout, this.IdleTimeoutBeforeCountdown, this.CheckInterval)
}

// CountdownAtEnd creates Options where the countdown covers roughly the
// last check interval before idleTimeout.
func CountdownAtEnd(idleTimeout, checkInterval time.Duration) Options {
	beforeCountdown := idleTimeout - checkInterval + time.Second
	if beforeCountdown > idleTimeout {
		beforeCountdown = idleTimeout
	}
	if beforeCountdown <= 0 {
		beforeCountdown = idleTimeout
	}
	return Options{
		IdleTimeout:                idleTimeout,
		IdleTimeoutBeforeCountdown: beforeCountdown,
		CheckInterval:              checkInterval,
	}
}

func (this *Options) SetupConfiguration(using common.FlagHolder, prefix, envPrefix string) {
	using.Flag(prefix+".idleTimeout", "After which time without activity the session is stopped.").
		Envar(envPrefix + "_IDLE_TIMEOUT").
		DurationVar(&this.IdleTimeout)
	using.Flag(prefix+".idleTimeoutBeforeCountdown", "After which time without activity the countdown until the stop starts.").
		Envar(envPrefix + "_IDLE_TIMEOUT_BEFORE_COUNTDOWN").
		DurationVar(&this.IdleTimeoutBeforeCountdown)
	using.Flag(prefix+".checkInterval", "How often the activity is checked while counting down.").
		Envar(envPrefix + "_CHECK_INTERVAL").
		DurationVar(&this.CheckInterval)
}
