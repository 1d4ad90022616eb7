package ddnsrelay

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ddnsrelay"

var requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: metricsNamespace,
	Name:      "http_requests_total",
	Help:      "Counter of relay requests by response status code.",
}, []string{"code"})

var authFailureCount = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: metricsNamespace,
	Name:      "auth_failures_total",
	Help:      "Counter of requests rejected for missing or wrong credentials.",
})

var updateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: metricsNamespace,
	Name:      "record_updates_total",
	Help:      "Counter of DNS record writes by result (updated, created, failed).",
}, []string{"result"})

func recordRequest(code int) {
	requestCount.WithLabelValues(strconv.Itoa(code)).Inc()
}

func recordUpdate(result string) {
	updateCount.WithLabelValues(result).Inc()
}
