// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package driving

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Characters a driver can be assigned.
const (
	CharacterDolphin = "dolphin"
	CharacterLion    = "lion"
	CharacterMeerkat = "meerkat"
	CharacterCat     = "cat"
)

var validCharacters = map[string]struct{}{
	CharacterDolphin: {},
	CharacterLion:    {},
	CharacterMeerkat: {},
	CharacterCat:     {},
}

// NormalizeCharacter lowercases c and reports whether it is a known
// character.
func NormalizeCharacter(c string) (string, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	_, ok := validCharacters[c]
	return c, ok
}

// ErrTraitService is returned for trait service responses that are neither
// a success nor a 404.
var ErrTraitService = errors.New("trait service error")

// TraitSource looks up driver characters.
type TraitSource interface {
	// GetOne returns userID's character. ok is false when the user has no
	// valid character.
	GetOne(ctx context.Context, userID string) (character string, ok bool, err error)
	// GetBulk returns every user that has a valid character.
	GetBulk(ctx context.Context) (map[string]string, error)
}

// TraitResponse is the per-user trait service payload.
type TraitResponse struct {
	UserID    string `json:"userId"`
	Character string `json:"character"`
}

// TraitBulkResponse is the bulk trait service payload.
type TraitBulkResponse struct {
	Data           []TraitResponse `json:"data"`
	GeneratedAtUTC time.Time       `json:"generatedAtUtc"`
}

// TraitClient talks to the driving analysis service.
type TraitClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTraitClient creates a client for baseURL, for example
// http://driving-analysis:8080. Requests time out after timeout.
func NewTraitClient(baseURL string, timeout time.Duration) (*TraitClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid trait service url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &TraitClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

var _ TraitSource = (*TraitClient)(nil)

// GetOne calls GET /internal/v1/traits/{userId}. A 404 or an unknown
// character reads as no character.
func (c *TraitClient) GetOne(ctx context.Context, userID string) (string, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return "", false, nil
	}

	var resp TraitResponse
	found, err := c.getJSON(ctx, "/internal/v1/traits/"+url.PathEscape(userID), nil, &resp)
	if err != nil || !found {
		return "", false, err
	}
	character, ok := NormalizeCharacter(resp.Character)
	if !ok {
		return "", false, nil
	}
	return character, true, nil
}

// GetBulk calls GET /internal/v1/traits/bulk?hasCharacter=true and keeps the
// entries with a known character.
func (c *TraitClient) GetBulk(ctx context.Context) (map[string]string, error) {
	var resp TraitBulkResponse
	found, err := c.getJSON(ctx, "/internal/v1/traits/bulk", url.Values{"hasCharacter": {"true"}}, &resp)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resp.Data))
	if !found {
		return out, nil
	}
	for _, t := range resp.Data {
		if t.UserID == "" {
			continue
		}
		if character, ok := NormalizeCharacter(t.Character); ok {
			out[t.UserID] = character
		}
	}
	return out, nil
}

// getJSON performs a GET and decodes the body into v. It reports false for
// a 404.
func (c *TraitClient) getJSON(ctx context.Context, path string, query url.Values, v any) (bool, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("trait request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("%w: %s returned %d", ErrTraitService, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("decode trait response: %w", err)
	}
	return true, nil
}
