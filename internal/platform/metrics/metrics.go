// Package metrics registers the Prometheus collectors shared across the
// credential services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	CredentialsIssued     prometheus.Counter
	CredentialsVerified   *prometheus.CounterVec
	RevocationsSubmitted  *prometheus.CounterVec
	TransfersCompleted    *prometheus.CounterVec
	MessagesDispatched    *prometheus.CounterVec
	RequestDurationSecond *prometheus.HistogramVec
}

// New creates and registers all collectors with the given registerer.
// Passing a fresh registry keeps tests isolated from the global one.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_credentials_issued_total",
			Help: "Total number of verifiable credentials issued",
		}),
		CredentialsVerified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_credentials_verified_total",
			Help: "Credential verification results",
		}, []string{"valid"}),
		RevocationsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_revocations_submitted_total",
			Help: "Revocation submissions by resulting status",
		}, []string{"status"}),
		TransfersCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_transfers_total",
			Help: "Mandate transfer attempts by outcome",
		}, []string{"outcome"}),
		MessagesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_messages_dispatched_total",
			Help: "Packed messages dispatched by outcome",
		}, []string{"outcome"}),
		RequestDurationSecond: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agent_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
