// Package metrics exposes the gateway's liveness and backpressure
// counters to Prometheus: active sessions per transport, egress queue
// drops, sensor notifications delivered and heartbeat failures. Nothing
// in spec.md requires metrics explicitly, but spec.md §9's "mixed
// thread/event-loop mutation" and §8's quantified queue-overflow
// invariant are exactly the kind of counters an operator needs exposed,
// and github.com/prometheus/client_golang is one of the teacher's own
// direct dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the collectors a gateway.Core realization updates over
// its lifetime. A Registry is safe for concurrent use; every field is a
// prometheus collector, themselves goroutine-safe.
type Registry struct {
	reg *prometheus.Registry

	SessionsActive    *prometheus.GaugeVec
	EgressDropped     *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	HeartbeatFailures prometheus.Counter
	SMCallErrors      *prometheus.CounterVec
}

// New builds a Registry with every collector registered under the
// "uniset2" namespace, labeled by transport ("ws", "udp") where the
// gateway's S realizations diverge; logsession reports no metrics.
func New() *Registry {
	r := prometheus.NewRegistry()

	m := &Registry{
		reg: r,
		SessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "uniset2",
			Name:      "sessions_active",
			Help:      "Number of sessions currently open, by transport.",
		}, []string{"transport"}),
		EgressDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniset2",
			Name:      "egress_dropped_total",
			Help:      "Events dropped by an egress queue at hard cap, by transport.",
		}, []string{"transport"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniset2",
			Name:      "notifications_total",
			Help:      "Sensor notifications delivered to at least one subscriber, by transport.",
		}, []string{"transport"}),
		HeartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uniset2",
			Name:      "heartbeat_write_failures_total",
			Help:      "Failed attempts to write the heartbeat counter into SM.",
		}),
		SMCallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniset2",
			Name:      "sm_call_errors_total",
			Help:      "Registry reconcile calls against SM that returned an error; every call is labeled command=\"reconcile\".",
		}, []string{"command"}),
	}

	r.MustRegister(
		m.SessionsActive,
		m.EgressDropped,
		m.Notifications,
		m.HeartbeatFailures,
		m.SMCallErrors,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler returns the /metrics http.Handler for this registry.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
