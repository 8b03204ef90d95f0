// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package logging provides the zerolog-based structured logger shared by every
// drivecast component.
//
// # Overview
//
// The package provides:
//   - A global zerolog logger configured once from main
//   - JSON output for production, console output for development
//   - Context-aware logging with correlation ID propagation
//   - Component loggers carrying node, alert and user fields
//   - An slog bridge used by the supervisor tree (sutureslog) and by
//     watermill's slog logger adapter
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("alert_id", id).Msg("Alert accepted")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Vicinity search degraded")
//
// # Configuration
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// # Testing
//
// Test packages silence output in an init function:
//
//	func init() {
//	    logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
//	}
//
// Always terminate event chains with Msg or Send; an unterminated chain is
// never written.
package logging
