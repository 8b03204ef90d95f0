// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package websocket

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/drivecast/internal/auth"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
)

// Handler returns the /ws upgrade handler. The request is authenticated
// before the upgrade so a rejected client gets a plain HTTP status.
func Handler(hub *Hub, authenticator auth.Authenticator) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(hub.cfg.AllowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticator.Authenticate(r)
		if err != nil {
			metrics.WSErrors.WithLabelValues("unauthorized").Inc()
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrNoCredentials) {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			http.Error(w, http.StatusText(status), status)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response.
			metrics.WSErrors.WithLabelValues("upgrade").Inc()
			logging.Debug().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		ctx := logging.ContextWithNewCorrelationID(context.WithoutCancel(r.Context()))
		client := NewClient(hub, conn, userID)
		if !hub.register(client) {
			_ = conn.Close()
			return
		}

		prev, err := hub.connector.Connect(ctx, userID, client)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Session bind failed")
			hub.unregister(client)
			_ = conn.Close()
			return
		}
		if prev != "" {
			logging.Ctx(ctx).Info().
				Str("user_id", userID).
				Str("previous_node", prev).
				Msg("Took over session from another node")
		}

		client.Start(ctx)
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}
