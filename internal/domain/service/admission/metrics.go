package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"groupbuy_market/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

//nolint:gochecknoglobals
var (
	admissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupbuy_admissions_total",
		Help: "Admission attempts by resulting status.",
	}, []string{"status"})

	conflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupbuy_admission_conflict_retries_total",
		Help: "Admissions retried after a storage-level conflict.",
	})

	cancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupbuy_cancellations_total",
		Help: "Cancelled registrations.",
	})

	promotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupbuy_waitlist_promotions_total",
		Help: "Waiting list registrations promoted to confirmed.",
	})
)
