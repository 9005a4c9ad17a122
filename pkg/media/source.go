package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/blaubaer/chat-audio/pkg/chat"
)

// Source is audio which can be opened for playback.
type Source interface {
	// Open returns the audio beginning at the offset the Source was resolved
	// with.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Kind is either "stream" or "blob".
	Kind() string
	String() string
}

// Resolver finds the Source of an audio entry.
type Resolver interface {
	Resolve(ctx context.Context, entry chat.Entry, skipTo time.Duration) (Source, error)
}

// ErrNoAudio is returned if an entry neither has a stream nor content.
var ErrNoAudio = fmt.Errorf("entry has no audio")
