package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rasa_intents_total",
		Help: "Assistant messages by final classification",
	}, []string{"kind"})

	VoiceCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rasa_voice_commands_total",
		Help: "Voice commands dispatched to the chat pipeline",
	}, []string{"status"})

	WakeStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rasa_wake_state_transitions_total",
		Help: "Wake-word state machine transitions by target state",
	}, []string{"state"})

	AIStreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rasa_ai_stream_duration_seconds",
		Help:    "Time from opening a model stream to its last fragment",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	AIFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rasa_ai_failures_total",
		Help: "Failed model calls by operation",
	}, []string{"operation"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rasa_ai_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rasa_cache_lookups_total",
		Help: "Content cache lookups by result",
	}, []string{"result"})
)
