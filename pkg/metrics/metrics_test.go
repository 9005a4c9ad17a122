package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetActiveChats(t *testing.T) {
	SetActiveChats(2, 1, 3)

	assert.Equal(t, float64(2), testutil.ToFloat64(activeChats.WithLabelValues("listening")))
	assert.Equal(t, float64(1), testutil.ToFloat64(activeChats.WithLabelValues("recording")))
	assert.Equal(t, float64(3), testutil.ToFloat64(activeChats.WithLabelValues("total")))
}

func TestReconcilerAction(t *testing.T) {
	before := testutil.ToFloat64(reconcilerActionsTotal.WithLabelValues("recording", "start"))

	ReconcilerAction("recording", "start")

	assert.Equal(t, before+1, testutil.ToFloat64(reconcilerActionsTotal.WithLabelValues("recording", "start")))
}

func TestTrackEnqueued(t *testing.T) {
	before := testutil.ToFloat64(enqueuedTracksTotal.WithLabelValues("historical", "blob"))

	TrackEnqueued("historical", "blob", time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(enqueuedTracksTotal.WithLabelValues("historical", "blob")))
}
