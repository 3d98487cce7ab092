package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsActivatedTotal,
		subscriptionsRenewedTotal,
		subscriptionsExpiredTotal,
	)
}

var (
	subscriptionsActivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "Subscriptions activated on first successful payment, by plan and billing cycle.",
		},
		[]string{"plan", "cycle"},
	)

	subscriptionsRenewedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_renewed_total",
			Help: "Successful recurring renewals by plan.",
		},
		[]string{"plan"},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions closed by the expiry sweep.",
		},
	)
)

func IncSubscriptionActivated(plan, cycle string) {
	subscriptionsActivatedTotal.WithLabelValues(norm(plan), norm(cycle)).Inc()
}

func IncSubscriptionRenewed(plan string) {
	subscriptionsRenewedTotal.WithLabelValues(norm(plan)).Inc()
}

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}
