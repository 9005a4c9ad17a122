package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	log "github.com/echocat/slf4g"
	"github.com/echocat/slf4g/native"
	"github.com/echocat/slf4g/native/consumer"
	"github.com/echocat/slf4g/native/facade/value"
	"github.com/echocat/slf4g/native/formatter"
	"github.com/joho/godotenv"

	"github.com/blaubaer/chat-audio/pkg/app"
	"github.com/blaubaer/chat-audio/pkg/common"
)

func main() {
	loadDotEnv()

	wf := &writerFacade{delegates: []io.Writer{os.Stderr}}
	buf := common.NewRingLineBuffer(2000, 4096)
	buf.TruncateTooLongLines = true
	consumer.Default = consumer.NewWriter(wf)

	lv := value.NewProvider(native.DefaultProvider)
	lv.Consumer.Formatter.Codec = value.MappingFormatterCodec{
		"text": formatter.NewText(func(v *formatter.Text) {
			bv := true
			v.AllowMultiLineMessage = &bv
			v.MultiLineMessageAfterFields = &bv
		}),
		"json": formatter.NewJson(),
	}

	a := app.NewApp()
	// While the user is asked something at the terminal the log is held
	// back and written afterwards.
	a.OnPrompt = func() func() {
		wf.set([]io.Writer{buf})
		return func() {
			wf.set([]io.Writer{os.Stderr}, func(_, _ []io.Writer) {
				_, _ = buf.DrainTo(os.Stderr)
			})
		}
	}

	cmd := kingpin.New("chat-audio", "Records into and plays back audio of chats.").
		Action(func(*kingpin.ParseContext) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := a.Initialize(ctx); err != nil {
				return err
			}
			defer func() {
				if err := a.Dispose(); err != nil {
					log.WithError(err).
						Warn("Cannot dispose application.")
				}
			}()

			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			log.Info("Terminated. Going down...")
			return nil
		})
	a.SetupConfiguration(cmd)

	cmd.Flag("log.level", "").
		SetValue(lv.Level)
	cmd.Flag("log.format", "").
		Default("text").
		SetValue(lv.Consumer.Formatter)
	cmd.Flag("log.color", "").
		Default("auto").
		SetValue(lv.Consumer.Formatter.ColorMode)

	kingpin.MustParse(cmd.Parse(os.Args[1:]))
}

// loadDotEnv makes the variables of .env.local and .env available to the
// CA_* flags. Already set variables are kept.
func loadDotEnv() {
	for _, fn := range []string{".env.local", ".env"} {
		if err := godotenv.Load(fn); errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "cannot load %s: %v\n", fn, err)
			os.Exit(1)
		}
	}
}

type writerFacade struct {
	delegates []io.Writer
	mutex     sync.RWMutex
}

func (this *writerFacade) Write(p []byte) (n int, err error) {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	for i, w := range this.delegates {
		var nn int
		if nn, err = w.Write(p); err != nil {
			return n, err
		}
		if i == 0 {
			n = nn
		} else if n != nn {
			return n, fmt.Errorf("the previous writer wrote %d, but the current one wrote %d bytes", nn, n)
		}
	}

	return
}

func (this *writerFacade) set(next []io.Writer, whileChange ...func(current, next []io.Writer)) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	current := this.delegates
	for _, fn := range whileChange {
		fn(current, next)
	}
	this.delegates = next
}
