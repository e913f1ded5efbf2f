package catalog

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ProductStore/pkg/kit"
)

const writeRateWindow = time.Minute

// HTTPDeps configures everything around the product routes. Zero values
// leave the matching feature off.
type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// MaxBodyBytes overrides Server.MaxBodyBytes when positive.
	MaxBodyBytes int64
	// WriteRateLimit is replace requests per minute per client IP.
	WriteRateLimit int
}

// NewHandler assembles the product store router. It works on a copy of s,
// so the caller's Server is left untouched: with a Registry the store is
// instrumented, and body and write limits from deps are applied.
func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	srv := *s
	if srv.Log == nil {
		srv.Log = deps.Log
	}
	if deps.MaxBodyBytes > 0 {
		srv.MaxBodyBytes = deps.MaxBodyBytes
	}
	if deps.WriteRateLimit > 0 && srv.WriteLimiter == nil {
		srv.WriteLimiter = kit.NewIPRateLimiter(deps.WriteRateLimit, writeRateWindow)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))

	if deps.Registry != nil {
		srv.Store = NewStoreMetrics(deps.Registry).Wrap(srv.Store)
		mountMetrics(r, deps)
	}

	r.Mount("/", srv.Routes())
	return r
}

// mountMetrics must run before any route is registered on r.
func mountMetrics(r *chi.Mux, deps HTTPDeps) {
	r.Use(kit.NewMetrics(deps.Registry).Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if !deps.MetricsEnabled {
		return
	}
	if deps.MetricsToken == "" && deps.Log != nil {
		deps.Log.Warn("metrics enabled without token, /metrics will answer 403")
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}
