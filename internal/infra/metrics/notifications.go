package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsSentTotal, webhooksTotal, dedupeRequestsTotal) }

var (
	notificationsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Build failure messages queued for chats.",
	})

	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Build webhooks by outcome.",
		},
		[]string{"result"}, // delivered | no_subscribers | duplicate | dropped
	)

	dedupeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedupe_requests_total",
			Help:      "Webhook de-duplication lookups by backend and result.",
		},
		[]string{"backend", "result"}, // backend="redis", result="duplicate"
	)
)

func AddNotificationsSent(n int) { notificationsSentTotal.Add(float64(n)) }

func IncWebhook(result string) { webhooksTotal.WithLabelValues(norm(result)).Inc() }

func IncDedupeRequest(backend, result string) {
	dedupeRequestsTotal.WithLabelValues(norm(backend), norm(result)).Inc()
}
