// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package api provides the HTTP surface of a drivecast node.

Routes:

  - GET /ws: websocket upgrade. Authentication happens in the websocket
    handler before the upgrade.
  - GET /metrics: Prometheus exposition.

Middleware stack, outermost first: request id (also the log correlation id),
real IP, panic recovery, CORS (go-chi/cors), security headers. The /ws
route adds the configured per-IP limit, a stricter upgrade limit
(go-chi/httprate) and request metrics.
*/
package api
