package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sessionsActive, sessionsStartedTotal, sessionsEndedTotal) }

var (
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of chat sessions currently registered.",
	})

	sessionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Chat sessions started, by flow.",
		},
		[]string{"flow"}, // subscribe | unsubscribe
	)

	sessionsEndedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Chat sessions ended, by reason.",
		},
		[]string{"reason"}, // completed | timeout | cancelled | failed
	)
)

func SetSessionsActive(n int) { sessionsActive.Set(float64(n)) }

func IncSessionStarted(flow string) { sessionsStartedTotal.WithLabelValues(norm(flow)).Inc() }

func IncSessionEnded(reason string) { sessionsEndedTotal.WithLabelValues(norm(reason)).Inc() }
