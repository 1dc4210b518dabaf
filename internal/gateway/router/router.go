// Package router wires the public query routes, the editor endpoint, health
// probes and metrics into one handler.
package router

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/editor"
	gwhandler "github.com/Adithya-Monish-Kumar-K/club-directory/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/club-directory/internal/gateway/middleware"
	queryhandler "github.com/Adithya-Monish-Kumar-K/club-directory/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/middleware"
)

type Deps struct {
	Query   *queryhandler.Handler
	Editor  *gwhandler.Handler
	Auth    *editor.Authenticator
	Limiter *ratelimit.Limiter
	Health  *health.Checker
	Metrics *metrics.Metrics
	CORS    gwmw.CORSConfig
	// ServeMetrics mounts /metrics on this mux.
	ServeMetrics bool
}

// New builds the service handler.
//
// Route table:
//
//	GET    /query/hello              → liveness greeting
//	GET    /query/list               → every visible entry
//	GET    /query/{avail}/{search}   → keyword search
//	POST   /api/v1/editor            → editor command (auth, rate limited)
//	GET    /health/live              → liveness
//	GET    /health/ready             → readiness
//	GET    /metrics                  → Prometheus
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → mux
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /query/hello", d.Query.Hello)
	mux.HandleFunc("GET /query/list", d.Query.List)
	mux.HandleFunc("GET /query/{avail}/{search}", d.Query.Query)

	var editorRoute http.Handler = http.HandlerFunc(d.Editor.Editor)
	editorRoute = gwmw.RateLimit(d.Limiter)(editorRoute)
	editorRoute = gwmw.EditorAuth(d.Auth)(editorRoute)
	mux.Handle("POST /api/v1/editor", editorRoute)

	mux.HandleFunc("GET /health/live", d.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", d.Health.ReadyHandler())
	if d.ServeMetrics {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	var chain http.Handler = mux
	chain = pkgmw.Metrics(d.Metrics)(chain)
	chain = gwmw.CORS(d.CORS)(chain)
	chain = pkgmw.RequestID(chain)
	return chain
}
