// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthenticator authenticates requests carrying an HS256 token.
type JWTAuthenticator struct {
	manager     *JWTManager
	tokenCookie string
	tokenQuery  string
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(manager *JWTManager) *JWTAuthenticator {
	return &JWTAuthenticator{
		manager:     manager,
		tokenCookie: "token",
		tokenQuery:  "access_token",
	}
}

// Authenticate extracts and validates the token and returns its subject.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (string, error) {
	tokenStr := a.extractToken(r)
	if tokenStr == "" {
		return "", ErrNoCredentials
	}

	claims, err := a.manager.ValidateToken(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredCredentials
		}
		return "", ErrInvalidCredentials
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return "", ErrInvalidCredentials
	}
	return userID, nil
}

// Name implements Authenticator.
func (a *JWTAuthenticator) Name() string {
	return string(ModeJWT)
}

// extractToken checks the Authorization header, then the cookie, then the
// query string.
func (a *JWTAuthenticator) extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	if cookie, err := r.Cookie(a.tokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return strings.TrimSpace(r.URL.Query().Get(a.tokenQuery))
}
