// Package httpapi assembles the anchor's HTTP surface: the discovery,
// auth, SEP-24, and SEP-6 route groups of spec.md §6.1, each
// independently mountable, plus the chi middleware stack and JSON error
// envelope shared across them.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quasaranchor/anchor/core/toml"
	"github.com/quasaranchor/anchor/internal/metrics"
)

// Modules groups the collaborators Server wires onto the router. Auth,
// SEP24, and SEP6 are optional — a nil module is simply not mounted,
// driving the discovery document's mount set (spec.md §4.1, P8).
type Modules struct {
	Discovery *DiscoveryModule
	Auth      *AuthModule
	SEP24     *SEP24Module
	SEP6      *SEP6Module
}

// NewRouter builds the chi.Mux serving every mounted module, recording
// the mount set on publisher so the discovery document reflects exactly
// what is reachable.
func NewRouter(mods Modules, publisher *toml.Publisher) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	mounts := toml.MountSet{}

	if mods.Discovery != nil {
		mods.Discovery.Register(r)
	}
	if mods.Auth != nil {
		mods.Auth.Register(r)
		mounts.Auth = true
	}
	if mods.SEP24 != nil {
		mods.SEP24.Register(r)
		mounts.SEP24 = true
	}
	if mods.SEP6 != nil {
		mods.SEP6.Register(r)
		mounts.SEP6 = true
	}
	if publisher != nil {
		publisher.SetMounts(mounts)
	}

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// metricsMiddleware records anchor_http_requests_total and
// anchor_http_request_duration_seconds for every request, keyed by the
// matched chi route pattern so cardinality stays bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.ObserveHTTPRequest(route, ww.Status(), time.Since(start).Seconds())
	})
}
