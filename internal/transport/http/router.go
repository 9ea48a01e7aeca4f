// Package transporthttp is the agent's HTTP edge. Handlers stay thin:
// decode, delegate to a service, translate the result. Business rules live
// behind the injected interfaces.
package transporthttp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tientaidev/veramo-agent/internal/credential/issuer"
	"github.com/tientaidev/veramo-agent/internal/credential/store"
	"github.com/tientaidev/veramo-agent/internal/credential/verifier"
	"github.com/tientaidev/veramo-agent/internal/identity"
	"github.com/tientaidev/veramo-agent/internal/messaging"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
	"github.com/tientaidev/veramo-agent/internal/platform/middleware"
	"github.com/tientaidev/veramo-agent/internal/revocation"
	"github.com/tientaidev/veramo-agent/internal/transfer"
	"github.com/tientaidev/veramo-agent/pkg/platform/httputil"
)

// Deps carries everything the HTTP layer delegates to.
type Deps struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Directory  identity.Directory
	Resolver   identity.Resolver
	Issuer     *issuer.Service
	Verifier   *verifier.Service
	Transfer   *transfer.Protocol
	Revocation *revocation.Engine
	Store      store.Store
	Dispatcher *messaging.Dispatcher
	Health     []HealthCheck

	// RequestTimeout bounds every request; zero falls back to 30s.
	RequestTimeout time.Duration
}

// HealthCheck probes one dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func() error
}

// NewRouter assembles the full route table.
func NewRouter(d Deps) http.Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Latency(d.Metrics))

	r.Get("/healthz", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	newIdentityHandler(d.Directory, d.Resolver, d.Logger).register(r)
	newCredentialHandler(d).register(r)
	newMessagingHandler(d.Dispatcher, d.Logger).register(r)
	return r
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for _, c := range checks {
			if err := c.Check(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[c.Name] = err.Error()
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
