package hue

import (
	"testing"

	"github.com/amimof/huego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/chat-audio/pkg/indicator"
)

func TestDesiredState(t *testing.T) {
	conf := NewConfiguration()

	cases := []struct {
		name     string
		state    indicator.State
		current  huego.State
		expected *huego.State
	}{{
		name:     "switchOn",
		state:    indicator.StateOn,
		current:  huego.State{},
		expected: &huego.State{On: true, Bri: 254, Hue: 65535, Sat: 254},
	}, {
		name:     "alreadyOn",
		state:    indicator.StateOn,
		current:  huego.State{On: true, Bri: 254, Hue: 65535, Sat: 254},
		expected: nil,
	}, {
		name:     "onWithOtherColor",
		state:    indicator.StateOn,
		current:  huego.State{On: true, Bri: 254, Hue: 25500, Sat: 254},
		expected: &huego.State{On: true, Bri: 254, Hue: 65535, Sat: 254},
	}, {
		name:     "switchOff",
		state:    indicator.StateOff,
		current:  huego.State{On: true, Bri: 100},
		expected: &huego.State{On: false},
	}, {
		name:     "alreadyOff",
		state:    indicator.StateOff,
		current:  huego.State{Bri: 100},
		expected: nil,
	}}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			actual, err := desiredState(&conf, c.state, &c.current)
			require.NoError(t, err)
			assert.Equal(t, c.expected, actual)
		})
	}

	_, err := desiredState(&conf, indicator.State(66), &huego.State{})
	assert.Error(t, err)
}

func TestKinds(t *testing.T) {
	var actual Kinds
	require.NoError(t, actual.Set("light, room"))

	assert.Equal(t, Kinds{KindLight, KindGroup}, actual)
	assert.Equal(t, "light,group", actual.String())
	assert.True(t, Kinds{}.Has(KindGroup))
	assert.False(t, Kinds{KindLight}.Has(KindGroup))
	assert.Error(t, actual.Set("lamp"))
}

func TestHue_notPaired(t *testing.T) {
	instance := &Hue{}

	_, err := instance.bridge()
	assert.EqualError(t, err, "not paired with hue bridge")
	assert.Equal(t, indicator.TypeHue, instance.GetType())
}
