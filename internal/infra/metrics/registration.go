package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(registrationAttemptsTotal) }

var registrationAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registration_attempts_total",
		Help:      "Registration handshake attempts by result.",
	},
	[]string{"result"}, // accepted | timeout | publish_error | foreign | malformed
)

func IncRegistrationAttempt(result string) {
	registrationAttemptsTotal.WithLabelValues(norm(result)).Inc()
}
