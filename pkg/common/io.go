package common

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	log "github.com/echocat/slf4g"
)

// Terminal is where interactive prompts are read from and written to.
type Terminal struct {
	Stdin  io.ReadCloser
	Stdout io.Writer
}

var DefaultTerminal = Terminal{
	Stdin:  os.Stdin,
	Stdout: os.Stderr,
}

func (this Terminal) open(promptName string) (*readline.Instance, error) {
	l, err := readline.NewEx(&readline.Config{
		Stdin:  this.Stdin,
		Stdout: this.Stdout,
	})
	if err != nil {
		return nil, fmt.Errorf("could not read from terminal for prompt %q: %w", promptName, err)
	}
	return l, nil
}

type settable interface {
	IsZero() bool
	Set(string) error
}

func RequestContentIfRequiredFromTerminal(of settable, promptName string, canBeEmpty, isPassword bool) error {
	if of.IsZero() {
		l, err := DefaultTerminal.open(promptName)
		if err != nil {
			return err
		}
		defer func() {
			_ = l.Close()
		}()

		prompt := fmt.Sprintf("Enter %s: ", promptName)
		l.SetPrompt(prompt)
		if isPassword {
			l.SetMaskRune('*')
		}
		l.ResetHistory()
		for of.IsZero() {
			var line string
			if isPassword {
				var b []byte
				b, err = l.ReadPassword(prompt)
				line = string(b)
			} else {
				line, err = l.Readline()
			}
			if err != nil {
				return fmt.Errorf("could not read from terminal for prompt %q: %w", promptName, err)
			}
			if err := of.Set(line); err != nil {
				log.WithError(err).
					Error()
			}
			if canBeEmpty && of.IsZero() {
				return nil
			}
		}
	}
	return nil
}

func RequestStringContentIfRequiredFromTerminal(of *string, promptName string, canBeEmpty, isPassword bool) error {
	buf := rawString(*of)
	if err := RequestContentIfRequiredFromTerminal(&buf, promptName, canBeEmpty, isPassword); err != nil {
		return err
	}
	*of = string(buf)
	return nil
}

// RequestConfirmation asks the given question until it is answered with yes
// or no. If ctx is done while waiting the prompt is closed and the error of
// ctx is returned.
func (this Terminal) RequestConfirmation(ctx context.Context, question string) (bool, error) {
	l, err := this.open(question)
	if err != nil {
		return false, err
	}
	closed := make(chan struct{})
	defer func() {
		close(closed)
		_ = l.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-closed:
		}
	}()

	l.SetPrompt(question + " [y/n]: ")
	for {
		line, err := l.Readline()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if err != nil {
			return false, fmt.Errorf("could not read from terminal for prompt %q: %w", question, err)
		}
		if v, ok := parseConfirmation(line); ok {
			return v, nil
		}
	}
}

func parseConfirmation(plain string) (value bool, ok bool) {
	switch strings.TrimSpace(strings.ToLower(plain)) {
	case "y", "yes", "1", "true", "on":
		return true, true
	case "n", "no", "0", "false", "off":
		return false, true
	default:
		return false, false
	}
}

type rawString []byte

func (v rawString) IsZero() bool {
	return len(v) == 0
}

func (v *rawString) Set(s string) error {
	*v = rawString(s)
	return nil
}
