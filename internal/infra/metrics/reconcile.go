package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reconciledTotal) }

var reconciledTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transactions_reconciled_total",
		Help: "Stale transactions resolved by the reconciler, labeled by outcome.",
	},
	[]string{"outcome"}, // 'resolved', 'failed'
)

func IncReconciled(outcome string) {
	reconciledTotal.WithLabelValues(norm(outcome)).Inc()
}
