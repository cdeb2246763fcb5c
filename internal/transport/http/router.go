// Package httptransport assembles the HTTP surface: feature handlers, the
// request-context middleware, health, and metrics. Handlers stay thin and
// delegate to domain services.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bluecarbon/pkg/platform/httputil"
)

// Registrar mounts a feature's endpoints on the router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of one backing dependency.
type HealthChecker func(r *http.Request) error

// NewRouter builds the service router. Feature handlers are passed as
// registrars so transport stays ignorant of their internals.
func NewRouter(health map[string]HealthChecker, features ...Registrar) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestContext)

	r.Get("/healthz", handleHealth(health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, f := range features {
		f.Register(r)
	}
	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		detail := make(map[string]string, len(checks)+1)
		for name, check := range checks {
			if err := check(r); err != nil {
				status = http.StatusServiceUnavailable
				detail[name] = err.Error()
				continue
			}
			detail[name] = "ok"
		}
		if status == http.StatusOK {
			detail["status"] = "ok"
		} else {
			detail["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, detail)
	}
}
