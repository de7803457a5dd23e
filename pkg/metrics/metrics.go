package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Request path metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentd_requests_total",
			Help: "Total number of commands relayed to the backend pool by type and primary status",
		},
		[]string{"type", "status"},
	)

	RequestsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentd_requests_dropped_total",
			Help: "Total number of inbound messages dropped before relay (empty body)",
		},
	)

	// Push path metrics
	PushesDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentd_pushes_delivered_total",
			Help: "Total number of push notifications delivered by kind",
		},
		[]string{"kind"},
	)

	PushesDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentd_pushes_discarded_total",
			Help: "Total number of push events discarded by reason",
		},
		[]string{"reason"},
	)

	// Registry metrics
	TasksPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentd_tasks_pending",
			Help: "Number of task registrations awaiting completion",
		},
	)

	NymsAssociated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentd_nyms_associated",
			Help: "Number of nyms with a routable connection association",
		},
	)

	// Session metrics
	SessionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentd_sessions_total",
			Help: "Number of logical sessions by class",
		},
		[]string{"class"},
	)

	SessionRefreshes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentd_session_refreshes_total",
			Help: "Total number of client session refresh cycles",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestsDropped)
	prometheus.MustRegister(PushesDelivered)
	prometheus.MustRegister(PushesDiscarded)
	prometheus.MustRegister(TasksPending)
	prometheus.MustRegister(NymsAssociated)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(SessionRefreshes)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes the metrics handler on addr. It blocks until the listener
// fails and is intended to run on its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	return http.ListenAndServe(addr, mux)
}
