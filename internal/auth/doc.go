// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package auth resolves the user id of a websocket handshake.

Token issuance is handled elsewhere; this package only verifies.

Authentication Modes:

The mode is configured via AUTH_MODE:

 1. JWT Mode (default):
    - HS256 tokens signed with JWT_SECRET
    - The subject claim is the user id
    - Read from the Authorization bearer header, the "token" cookie, or the
    access_token query parameter (browsers cannot set headers on a
    websocket upgrade)

 2. None Mode:
    - The user id is read from the userId query parameter
    - Development and load testing only

Usage:

	a, err := auth.NewAuthenticator(auth.ModeJWT, secret)
	userID, err := a.Authenticate(r)
	if errors.Is(err, auth.ErrExpiredCredentials) {
	    // 401 with a refresh hint
	}
*/
package auth
