package playback

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/blaubaer/chat-audio/pkg/common"
)

var validate = validator.New()

type Options struct {
	// MaxEntryDuration is the longest an audio entry can last.
	MaxEntryDuration time.Duration `yaml:"maxEntryDuration" validate:"gt=0"`
	// EnqueueAhead is how long before its play moment a track is handed to
	// the engine.
	EnqueueAhead time.Duration `yaml:"enqueueAhead" validate:"gte=0"`
	// StreamingSkipTo is where playback of an entry which is still being
	// produced starts.
	StreamingSkipTo time.Duration `yaml:"streamingSkipTo" validate:"gte=0"`
	SkipOwnEntries  bool          `yaml:"skipOwnEntries"`
	OwnAuthorId     string        `yaml:"ownAuthorId,omitempty" validate:"required_if=SkipOwnEntries true"`
}

func NewOptions() Options {
	return Options{
		MaxEntryDuration: 180 * time.Second,
		EnqueueAhead:     time.Second,
		StreamingSkipTo:  500 * time.Millisecond,
	}
}

// InfDuration is assumed for entries without a known end.
func (this Options) InfDuration() time.Duration {
	return 2 * this.MaxEntryDuration
}

func (this Options) Validate() error {
	if err := validate.Struct(this); err != nil {
		return fmt.Errorf("illegal playback options: %w", err)
	}
	return nil
}

func (this *Options) SetupConfiguration(using common.FlagHolder) {
	using.Flag("playback.maxEntryDuration", "The longest an audio entry can last.").
		Envar("CA_PLAYBACK_MAX_ENTRY_DURATION").
		DurationVar(&this.MaxEntryDuration)
	using.Flag("playback.enqueueAhead", "How long before it should be played a track is enqueued.").
		Envar("CA_PLAYBACK_ENQUEUE_AHEAD").
		DurationVar(&this.EnqueueAhead)
	using.Flag("playback.streamingSkipTo", "Where the playback of entries which are still being recorded starts.").
		Envar("CA_PLAYBACK_STREAMING_SKIP_TO").
		DurationVar(&this.StreamingSkipTo)
	using.Flag("playback.skipOwnEntries", "If set own entries are not played in realtime.").
		Envar("CA_PLAYBACK_SKIP_OWN_ENTRIES").
		BoolVar(&this.SkipOwnEntries)
	using.Flag("playback.ownAuthorId", "Author id of the current user.").
		Envar("CA_PLAYBACK_OWN_AUTHOR_ID").
		StringVar(&this.OwnAuthorId)
}
