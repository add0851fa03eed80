// Package metrics exposes the token lifecycle counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "auth"

// Metrics records token lifecycle events.
type Metrics struct {
	tokensIssued       prometheus.Counter
	validationFailures *prometheus.CounterVec
	blacklistDegraded  *prometheus.CounterVec
	rotations          *prometheus.CounterVec
	revocations        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Access/refresh token pairs issued.",
		}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_validation_failures_total",
			Help:      "Rejected access tokens by reason.",
		}, []string{"reason"}),
		blacklistDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blacklist_degraded_total",
			Help:      "Blacklist operations that failed because the backend was unreachable.",
		}, []string{"op"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotations by result.",
		}, []string{"result"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Session revocations by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.tokensIssued, m.validationFailures, m.blacklistDegraded, m.rotations, m.revocations)
	return m
}

func (m *Metrics) TokenIssued() { m.tokensIssued.Inc() }

func (m *Metrics) ValidationFailed(reason string) { m.validationFailures.WithLabelValues(reason).Inc() }

func (m *Metrics) BlacklistDegraded(op string) { m.blacklistDegraded.WithLabelValues(op).Inc() }

func (m *Metrics) RefreshRotated(result string) { m.rotations.WithLabelValues(result).Inc() }

func (m *Metrics) Revoked(kind string) { m.revocations.WithLabelValues(kind).Inc() }

// Noop discards every event.
type Noop struct{}

func (Noop) TokenIssued() {}
func (Noop) ValidationFailed(string) {}
func (Noop) BlacklistDegraded(string) {}
func (Noop) RefreshRotated(string) {}
func (Noop) Revoked(string) {}
