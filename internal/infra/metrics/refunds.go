package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(refundsTotal) }

var refundsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Refund workflow events by status (requested/approved/rejected/completed).",
	},
	[]string{"status"},
)

func IncRefund(status string) {
	refundsTotal.WithLabelValues(norm(status)).Inc()
}
