package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequests counts calls to the REST backend by endpoint and outcome.
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acmweb",
		Name:      "backend_requests_total",
		Help:      "Requests sent to the REST backend.",
	}, []string{"endpoint", "outcome"})

	// BackendCacheHits counts backend reads answered from the fetch cache.
	BackendCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "acmweb",
		Name:      "backend_cache_hits_total",
		Help:      "Backend reads served from the local fetch cache.",
	})

	// AttendanceSubmissions counts attendance attempts by result.
	AttendanceSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acmweb",
		Name:      "attendance_submissions_total",
		Help:      "Attendance submissions by result.",
	}, []string{"result"})

	// RemindersSent counts web push reminders by delivery outcome.
	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acmweb",
		Name:      "attendance_reminders_total",
		Help:      "Attendance reminder notifications by outcome.",
	}, []string{"outcome"})
)
