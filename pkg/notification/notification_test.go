package notification

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/recording"
)

func TestNotifications(t *testing.T) {
	clocks, fc := clock.NewFakeClocks(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	instance := NewNotifications(clocks)
	instance.Capacity = 2

	instance.Publish("recording", nil)
	assert.Empty(t, instance.Get())

	instance.Publish("recording", errors.New("first"))
	fc.Advance(time.Second)
	instance.Publisher("listening")(errors.New("second"))
	fc.Advance(time.Second)
	instance.Publish("recording", fmt.Errorf("cannot start: %w", &recording.DeviceError{ChatId: "c1", Cause: errors.New("unplugged")}))

	actual := instance.Get()
	assert.Len(t, actual, 2)
	assert.Equal(t, "second", actual[0].Message)
	assert.Equal(t, "listening", actual[0].Source)
	assert.Equal(t, "c1", actual[1].ChatId)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 2, 0, time.UTC), actual[1].At)

	instance.Clear()
	assert.Empty(t, instance.Get())
}
