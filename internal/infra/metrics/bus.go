package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(busMessagesTotal, busPublishErrorsTotal) }

var (
	busMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_total",
			Help:      "Inbound bus messages by classification.",
		},
		[]string{"kind"}, // session_start | session_input | command | webhook | foreign_webhook | unknown
	)

	busPublishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_publish_errors_total",
			Help:      "Failed publishes by topic.",
		},
		[]string{"topic"},
	)
)

func IncBusMessage(kind string) { busMessagesTotal.WithLabelValues(norm(kind)).Inc() }

func IncPublishError(topic string) { busPublishErrorsTotal.WithLabelValues(topic).Inc() }
