// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Credentials are the tokens returned by a successful authentication or
// refresh. They are never mutated; a refresh produces new Credentials.
type Credentials struct {
	AccessToken AccessToken
	TokenType   string

	// IDToken is empty when the provider didn't return one.
	IDToken IDToken

	// RefreshToken is empty when the provider didn't return one.
	RefreshToken RefreshToken

	// ExpiresAt is the absolute expiry of AccessToken.
	ExpiresAt time.Time

	Scope        string
	RecoveryCode string
}

// NewCredentials builds Credentials whose access token expires expiresIn
// after now.
func NewCredentials(accessToken AccessToken, tokenType string, expiresIn time.Duration, now time.Time) *Credentials {
	return &Credentials{
		AccessToken: accessToken,
		TokenType:   tokenType,
		ExpiresAt:   now.Add(expiresIn),
	}
}

// Expired reports whether the access token is expired at now.
func (c *Credentials) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Lifetime of the access token remaining at now.
func (c *Credentials) Lifetime(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// maxExpiresIn is the largest expires_in, in seconds, representable as a
// time.Duration. Larger values are clamped to it.
const maxExpiresIn = float64(math.MaxInt64 / int64(time.Second))

// parseExpiresIn converts an expires_in value in seconds to a duration.
// Values which are not finite or are negative are refused.
func parseExpiresIn(v string) (time.Duration, error) {
	const op = "oidc.parseExpiresIn"
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: expires_in %q is not a number: %w: %w", op, v, ErrInvalidResponse, err)
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0, fmt.Errorf("%s: expires_in %q is not finite: %w", op, v, ErrInvalidResponse)
	case f < 0:
		return 0, fmt.Errorf("%s: expires_in %q is negative: %w", op, v, ErrInvalidResponse)
	case f >= maxExpiresIn:
		return time.Duration(math.MaxInt64), nil
	}
	return time.Duration(f * float64(time.Second)), nil
}

// expiresIn accepts a JSON number or a numeric string of seconds.
type expiresIn struct {
	d   time.Duration
	set bool
}

func (e *expiresIn) UnmarshalJSON(b []byte) error {
	const op = "expiresIn.UnmarshalJSON"
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		b = []byte(s)
	}
	d, err := parseExpiresIn(string(b))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	e.d, e.set = d, true
	return nil
}

func (e expiresIn) at(now time.Time) time.Time {
	return now.Add(e.d)
}

// tokenResponse is the body of a successful token endpoint response.
type tokenResponse struct {
	AccessToken     string    `json:"access_token"`
	TokenType       string    `json:"token_type"`
	IDToken         string    `json:"id_token"`
	RefreshToken    string    `json:"refresh_token"`
	ExpiresIn       expiresIn `json:"expires_in"`
	Scope           string    `json:"scope"`
	RecoveryCode    string    `json:"recovery_code"`
	IssuedTokenType string    `json:"issued_token_type"`
}

// parseTokenResponse decodes a token endpoint response body. A missing
// expires_in yields credentials which expire at now.
func parseTokenResponse(body []byte, now time.Time) (*Credentials, error) {
	const op = "oidc.parseTokenResponse"
	var r tokenResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidResponse, err)
	}
	if r.AccessToken == "" || r.TokenType == "" {
		return nil, fmt.Errorf("%s: access_token and token_type are required: %w", op, ErrInvalidResponse)
	}
	return &Credentials{
		AccessToken:  AccessToken(r.AccessToken),
		TokenType:    r.TokenType,
		IDToken:      IDToken(r.IDToken),
		RefreshToken: RefreshToken(r.RefreshToken),
		ExpiresAt:    r.ExpiresIn.at(now),
		Scope:        r.Scope,
		RecoveryCode: r.RecoveryCode,
	}, nil
}

// credentialsFromParams builds Credentials from the parameters of an
// implicit flow callback. Missing tokens are left empty.
func credentialsFromParams(items map[string]string, now time.Time) (*Credentials, error) {
	const op = "oidc.credentialsFromParams"
	c := &Credentials{
		AccessToken:  AccessToken(items["access_token"]),
		TokenType:    items["token_type"],
		IDToken:      IDToken(items["id_token"]),
		RefreshToken: RefreshToken(items["refresh_token"]),
		Scope:        items["scope"],
		ExpiresAt:    now,
	}
	if v := items["expires_in"]; v != "" {
		d, err := parseExpiresIn(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.ExpiresAt = now.Add(d)
	}
	return c, nil
}

// credentialsRecord is the persisted form of Credentials. Unlike Credentials
// it carries the raw tokens.
type credentialsRecord struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	IDToken      string    `json:"id_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope,omitempty"`
	RecoveryCode string    `json:"recovery_code,omitempty"`
}

// EncodeCredentials serializes c, tokens included, for a secure store. c
// must carry an access token or an id_token; an implicit login may return
// only the latter.
func EncodeCredentials(c *Credentials) ([]byte, error) {
	const op = "oidc.EncodeCredentials"
	switch {
	case c == nil:
		return nil, fmt.Errorf("%s: credentials are nil: %w", op, ErrNilParameter)
	case c.AccessToken == "" && c.IDToken == "":
		return nil, fmt.Errorf("%s: access_token and id_token are both missing: %w", op, ErrInvalidParameter)
	}
	b, err := json.Marshal(credentialsRecord{
		AccessToken:  string(c.AccessToken),
		TokenType:    c.TokenType,
		IDToken:      string(c.IDToken),
		RefreshToken: string(c.RefreshToken),
		ExpiresAt:    c.ExpiresAt.UTC(),
		Scope:        c.Scope,
		RecoveryCode: c.RecoveryCode,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// DecodeCredentials is the inverse of EncodeCredentials.
func DecodeCredentials(b []byte) (*Credentials, error) {
	const op = "oidc.DecodeCredentials"
	var r credentialsRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
	}
	if r.AccessToken == "" && r.IDToken == "" {
		return nil, fmt.Errorf("%s: access_token and id_token are both missing: %w", op, ErrInvalidParameter)
	}
	return &Credentials{
		AccessToken:  AccessToken(r.AccessToken),
		TokenType:    r.TokenType,
		IDToken:      IDToken(r.IDToken),
		RefreshToken: RefreshToken(r.RefreshToken),
		ExpiresAt:    r.ExpiresAt,
		Scope:        r.Scope,
		RecoveryCode: r.RecoveryCode,
	}, nil
}
