// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/drivecast/internal/middleware"
)

// Route paths.
const (
	PathWebSocket = "/ws"
	PathMetrics   = "/metrics"
)

// Router wires the websocket endpoint and the metrics endpoint behind the
// shared middleware stack.
type Router struct {
	ws            http.Handler
	metrics       http.Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. ws is the websocket upgrade handler; mw may
// be nil for defaults.
func NewRouter(ws http.Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{
		ws:            ws,
		metrics:       promhttp.Handler(),
		chiMiddleware: mw,
	}
}

// Handler builds the chi route tree.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Applied to all routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(SecurityHeaders())

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitWebSocket))
		r.Use(middleware.PrometheusMetrics)
		r.Get(PathWebSocket, router.ws.ServeHTTP)
	})

	r.With(router.chiMiddleware.RateLimitCustom(RateLimitScrape)).Get(PathMetrics, router.metrics.ServeHTTP)

	return r
}
