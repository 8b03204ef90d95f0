// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package supervisor runs the long-lived loops of a drivecast node under a
suture v4 supervisor tree.

# Overview

	drivecast
	├── coordination-layer
	│   ├── ownership-heartbeat
	│   ├── trait-cache-warmer   (TRAITS_ENABLED)
	│   └── nats-watchdog        (embedded NATS)
	├── messaging-layer
	│   ├── relay-listener
	│   ├── websocket-hub
	│   ├── repeat-scheduler
	│   ├── ingest-consumer      (INGEST_ENABLED)
	│   └── driving-broadcaster  (TRAITS_ENABLED)
	└── api-layer
	    └── http-server

Each layer counts failures on its own. A relay listener that loses its bus
subscription is restarted with backoff without dropping open websocket
connections or the HTTP listener.

Supervisor events (start, failure, backoff, restart) are logged through
sutureslog on top of the zerolog-backed slog handler from
internal/logging.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	tree.AddMessagingService(services.NewRunnerService("relay-listener", services.RunFunc(rl.Listen)))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

After Serve returns, UnstoppedServiceReport lists services that ignored
the shutdown timeout.

See internal/supervisor/services for the suture.Service adapters.
*/
package supervisor
