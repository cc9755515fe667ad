package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		escrowTotal,
		escrowVolumeTotal,
	)
}

var (
	escrowTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transactions_total",
			Help: "Escrow outcomes by status (held/settled/refunded/reversed/failed).",
		},
		[]string{"status"},
	)

	escrowVolumeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_volume_total",
			Help: "Total minor-unit value taken into escrow, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncEscrow(status string) {
	escrowTotal.WithLabelValues(norm(status)).Inc()
}

func AddEscrowVolume(currency string, amount int64) {
	escrowVolumeTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
