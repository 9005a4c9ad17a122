package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	activeChats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_audio_active_chats",
			Help: "Number of active chats by session kind.",
		},
		[]string{"kind"},
	)
	activeChatsUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_audio_active_chats_updates_total",
			Help: "Total number of updates of the active chats by result.",
		},
		[]string{"result"},
	)
	reconcilerActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_audio_reconciler_actions_total",
			Help: "Total number of actions taken by the reconcilers.",
		},
		[]string{"reconciler", "action"},
	)
	idleSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_audio_idle_signals_total",
			Help: "Total number of signals emitted by idle monitors.",
		},
		[]string{"monitor", "signal"},
	)
	operationRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_audio_operation_restarts_total",
			Help: "Total number of restarts of background operations after a failure.",
		},
		[]string{"operation"},
	)
	enqueuedTracksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_audio_enqueued_tracks_total",
			Help: "Total number of tracks enqueued for playback.",
		},
		[]string{"mode", "source"},
	)
	enqueueLeadSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_audio_enqueue_lead_seconds",
			Help:    "How long before the scheduled play moment a track was enqueued.",
			Buckets: []float64{-1, 0, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(
		activeChats,
		activeChatsUpdatesTotal,
		reconcilerActionsTotal,
		idleSignalsTotal,
		operationRestartsTotal,
		enqueuedTracksTotal,
		enqueueLeadSeconds,
	)
}

func SetActiveChats(listening, recording, total int) {
	activeChats.WithLabelValues("listening").Set(float64(listening))
	activeChats.WithLabelValues("recording").Set(float64(recording))
	activeChats.WithLabelValues("total").Set(float64(total))
}

func ActiveChatsUpdated(result string) {
	activeChatsUpdatesTotal.WithLabelValues(result).Inc()
}

func ReconcilerAction(reconciler, action string) {
	reconcilerActionsTotal.WithLabelValues(reconciler, action).Inc()
}

func IdleSignal(monitor, signal string) {
	idleSignalsTotal.WithLabelValues(monitor, signal).Inc()
}

func OperationRestarted(operation string) {
	operationRestartsTotal.WithLabelValues(operation).Inc()
}

func TrackEnqueued(mode, source string, lead time.Duration) {
	enqueuedTracksTotal.WithLabelValues(mode, source).Inc()
	enqueueLeadSeconds.WithLabelValues(mode).Observe(lead.Seconds())
}

// Handler exposes all registered metrics.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
