package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesHandled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "companion_messages_handled_total",
			Help: "Total number of inbound user messages handled",
		},
	)

	ProactiveEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companion_proactive_enqueued_total",
			Help: "Proactive messages queued for delivery, by kind",
		},
		[]string{"kind"},
	)

	MemoriesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companion_memories_recorded_total",
			Help: "Memories recorded, by collection",
		},
		[]string{"collection"},
	)

	MemoriesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "companion_memories_pruned_total",
			Help: "Ephemeral memories removed by retention pruning",
		},
	)

	KnownUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "companion_known_users",
			Help: "Number of users in the state registry",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "companion_sweep_duration_seconds",
			Help:    "Duration of an engagement sweep over all users",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companion_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	ReplyFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "companion_reply_fallbacks_total",
			Help: "Replies produced by the local template because the LLM failed",
		},
	)
)
