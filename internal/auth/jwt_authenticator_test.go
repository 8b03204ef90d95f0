// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTAuthenticator(t *testing.T) {
	m, _ := NewJWTManager(testSecret, time.Hour)
	a := NewJWTAuthenticator(m)
	token, _ := m.GenerateToken("user-7")

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{}).SignedString([]byte(testSecret))

	tests := []struct {
		name    string
		build   func(r *http.Request)
		want    string
		wantErr error
	}{
		{
			name:  "bearer header",
			build: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			want:  "user-7",
		},
		{
			name:  "lowercase bearer",
			build: func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) },
			want:  "user-7",
		},
		{
			name:  "cookie",
			build: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: token}) },
			want:  "user-7",
		},
		{
			name: "query parameter",
			build: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("access_token", token)
				r.URL.RawQuery = q.Encode()
			},
			want: "user-7",
		},
		{
			name:    "missing",
			build:   func(*http.Request) {},
			wantErr: ErrNoCredentials,
		},
		{
			name:    "basic scheme ignored",
			build:   func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			wantErr: ErrNoCredentials,
		},
		{
			name:    "invalid",
			build:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "expired",
			build:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) },
			wantErr: ErrExpiredCredentials,
		},
		{
			name:    "no subject",
			build:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+noSubject) },
			wantErr: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.build(r)
			got, err := a.Authenticate(r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tt.want {
				t.Errorf("user = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueryAuthenticator(t *testing.T) {
	a := QueryAuthenticator{}

	r := httptest.NewRequest(http.MethodGet, "/ws?userId=%2042%20", nil)
	if got, err := a.Authenticate(r); err != nil || got != "42" {
		t.Errorf("Authenticate = %q, %v; want 42", got, err)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	if _, err := a.Authenticate(r); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestParseModeAndFactory(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeJWT, false},
		{"JWT", ModeJWT, false},
		{"none", ModeNone, false},
		{"basic", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
			}
		})
	}

	if a, err := NewAuthenticator(ModeJWT, testSecret); err != nil || a.Name() != "jwt" {
		t.Errorf("NewAuthenticator(jwt) = %v, %v", a, err)
	}
	if _, err := NewAuthenticator(ModeJWT, ""); err == nil {
		t.Error("NewAuthenticator(jwt) accepted an empty secret")
	}
	if a, err := NewAuthenticator(ModeNone, ""); err != nil || a.Name() != "none" {
		t.Errorf("NewAuthenticator(none) = %v, %v", a, err)
	}
}
