// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Total number of chat turns handled, by response branch",
		},
		[]string{"branch"},
	)

	ChatTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chat_turn_duration_seconds",
			Help: "Duration of chat turn handling in seconds",
		},
		[]string{"branch"},
	)

	ProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_provider_failures_total",
			Help: "Total number of completion provider failures, by kind",
		},
		[]string{"kind"},
	)

	LeadFieldsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_fields_extracted_total",
			Help: "Total number of lead fields extracted from messages",
		},
		[]string{"field"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of sessions currently held in the store",
		},
	)
)
