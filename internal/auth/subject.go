// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Mode is the handshake authentication strategy.
type Mode string

const (
	// ModeJWT verifies HS256 bearer tokens.
	ModeJWT Mode = "jwt"
	// ModeNone trusts the userId query parameter.
	ModeNone Mode = "none"
)

// ParseMode converts a string to a Mode. Empty selects ModeJWT.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jwt":
		return ModeJWT, nil
	case "none":
		return ModeNone, nil
	default:
		return "", fmt.Errorf("invalid auth mode: %q", s)
	}
}

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// Standard authentication errors
var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials have expired.
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Authenticator resolves the user behind a request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
	Name() string
}

// NewAuthenticator builds the authenticator for mode.
func NewAuthenticator(mode Mode, secret string) (Authenticator, error) {
	switch mode {
	case ModeJWT:
		manager, err := NewJWTManager(secret, 0)
		if err != nil {
			return nil, err
		}
		return NewJWTAuthenticator(manager), nil
	case ModeNone:
		return QueryAuthenticator{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", mode)
	}
}

// QueryAuthenticator trusts the userId query parameter.
type QueryAuthenticator struct{}

// Authenticate implements Authenticator.
func (QueryAuthenticator) Authenticate(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		return "", ErrNoCredentials
	}
	return userID, nil
}

// Name implements Authenticator.
func (QueryAuthenticator) Name() string {
	return string(ModeNone)
}
