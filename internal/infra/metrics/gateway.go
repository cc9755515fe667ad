package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		gatewayErrorsTotal,
		gatewayCallLatencyMs,
	)
}

var (
	gatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Payment gateway failures by kind (timeout/unavailable).",
		},
		[]string{"kind"},
	)

	gatewayCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_latency_ms",
			Help:    "Gateway call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 15000},
		},
		[]string{"op", "success"},
	)
)

func IncGatewayError(kind string) {
	gatewayErrorsTotal.WithLabelValues(norm(kind)).Inc()
}

func ObserveGatewayCall(op string, latencyMs int, success bool) {
	gatewayCallLatencyMs.WithLabelValues(norm(op), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}
