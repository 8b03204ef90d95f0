// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package services adapts drivecast components to suture.Service.

Three lifecycle shapes are covered:

  - ListenAndServe/Shutdown (HTTPServerService): the server runs in a
    goroutine and is drained with a bounded shutdown context when the
    supervisor stops it.
  - Run(ctx) loops (RunnerService): relay listener, ownership heartbeat,
    repeat scheduler, ingestion consumer, driving broadcaster, trait
    cache warmer and the websocket hub. RunFunc adapts method values
    such as hub.RunWithContext or relay.Listen.
  - Passive health (NATSWatchdogService): polls the embedded NATS server
    and fails once it is gone.

Return values drive supervisor behavior: ctx.Err() after cancellation is
a normal stop, anything else is a failure and triggers a restart with
backoff.

Example:

	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	tree.AddMessagingService(services.NewRunnerService("websocket-hub",
	    services.RunFunc(hub.RunWithContext)))
	tree.AddCoordinationService(services.NewRunnerService("ownership-heartbeat", heartbeat))
*/
package services
