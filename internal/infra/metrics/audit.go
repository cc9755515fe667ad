package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		auditEntriesTotal,
		auditFailuresTotal,
	)
}

var (
	auditEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Audit entries appended, labeled by action.",
		},
		[]string{"action"},
	)

	auditFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_failures_total",
			Help: "Audit appends that failed and were only logged.",
		},
	)
)

func IncAudit(action string) {
	auditEntriesTotal.WithLabelValues(norm(action)).Inc()
}

func IncAuditFailure() {
	auditFailuresTotal.Inc()
}
