package gate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/common"
)

// Gate asks the user whether an audio operation may happen. It returns
// false if the user declined.
type Gate interface {
	Demand(ctx context.Context, operation string) (bool, error)
}

// Static is a Gate which always answers the same.
type Static bool

const (
	Allow = Static(true)
	Deny  = Static(false)
)

func (this Static) Demand(context.Context, string) (bool, error) {
	return bool(this), nil
}

type Prompter interface {
	RequestConfirmation(ctx context.Context, question string) (bool, error)
}

// Terminal asks on the terminal until the user once allowed an operation.
// After that audio is considered authorized and every further demand is
// granted without a prompt.
type Terminal struct {
	Prompter Prompter

	// OnPrompt is called before the prompt is shown. The returned function
	// is called after it was answered.
	OnPrompt func() (resume func())

	mutex      sync.Mutex
	authorized bool
}

func NewTerminal() *Terminal {
	return &Terminal{Prompter: common.DefaultTerminal}
}

func (this *Terminal) Demand(ctx context.Context, operation string) (bool, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.authorized {
		return true, nil
	}

	if this.OnPrompt != nil {
		resume := this.OnPrompt()
		defer resume()
	}

	ok, err := this.Prompter.RequestConfirmation(ctx, fmt.Sprintf("Allow %s?", operation))
	if err != nil {
		return false, fmt.Errorf("cannot demand %s: %w", operation, err)
	}
	if ok {
		this.authorized = true
		log.With("operation", operation).
			Info("Audio authorized.")
	} else {
		log.With("operation", operation).
			Info("Audio operation was declined.")
	}
	return ok, nil
}

// IsAuthorized reports whether the user already allowed audio once.
func (this *Terminal) IsAuthorized() bool {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.authorized
}

type Type uint8

const (
	TypeTerminal Type = iota
	TypeAllow
	TypeDeny
)

var (
	AllTypes = Types{TypeTerminal, TypeAllow, TypeDeny}
)

func (this *Type) Set(plain string) error {
	switch strings.ToLower(plain) {
	case "terminal", "tty":
		*this = TypeTerminal
	case "allow", "yes":
		*this = TypeAllow
	case "deny", "no":
		*this = TypeDeny
	default:
		return fmt.Errorf("illegal gate type: %q", plain)
	}
	return nil
}

func (this Type) String() string {
	v, err := this.MarshalText()
	if err != nil {
		return fmt.Sprintf("illegal-gate-type-%d", this)
	}
	return string(v)
}

func (this Type) MarshalText() (text []byte, err error) {
	switch this {
	case TypeTerminal:
		return []byte("terminal"), nil
	case TypeAllow:
		return []byte("allow"), nil
	case TypeDeny:
		return []byte("deny"), nil
	default:
		return nil, fmt.Errorf("illegal gate type: %d", this)
	}
}

func (this *Type) UnmarshalText(text []byte) error {
	return this.Set(string(text))
}

// New creates the Gate of this type.
func (this Type) New(onPrompt func() func()) (Gate, error) {
	switch this {
	case TypeTerminal:
		result := NewTerminal()
		result.OnPrompt = onPrompt
		return result, nil
	case TypeAllow:
		return Allow, nil
	case TypeDeny:
		return Deny, nil
	default:
		return nil, fmt.Errorf("illegal gate type: %d", this)
	}
}

type Types []Type

func (this Types) Strings() []string {
	result := make([]string, len(this))
	for i, v := range this {
		result[i] = v.String()
	}
	return result
}

func (this Types) String() string {
	return strings.Join(this.Strings(), ", ")
}
