package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobLockAcquisitionsTotal,
		renewalChargesTotal,
	)
}

var (
	jobLockAcquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_lock_acquisitions_total",
			Help: "Scheduled-job lock attempts by job key and outcome.",
		},
		[]string{"job", "outcome"}, // 'acquired', 'skipped', 'error'
	)

	renewalChargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renewal_charges_total",
			Help: "Recurring renewal attempts by outcome.",
		},
		[]string{"outcome"}, // 'renewed', 'failed'
	)
)

func IncJobLock(job, outcome string) {
	jobLockAcquisitionsTotal.WithLabelValues(norm(job), norm(outcome)).Inc()
}

func IncRenewalCharge(outcome string) {
	renewalChargesTotal.WithLabelValues(norm(outcome)).Inc()
}
