package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsTotal,
		subscriptionRevenueTotal,
	)
}

var (
	subscriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_total",
			Help: "Subscription lifecycle events by status (created/renewed/grace/suspended/cancelled).",
		},
		[]string{"status"},
	)

	subscriptionRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_revenue_total",
			Help: "Total minor-unit value of successful renewal charges, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncSubscription(status string) {
	subscriptionsTotal.WithLabelValues(norm(status)).Inc()
}

func AddSubscriptionRevenue(currency string, amount int64) {
	subscriptionRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
