// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// TokenTypeRefreshToken identifies a refresh token in a token exchange.
	TokenTypeRefreshToken = "urn:ietf:params:oauth:token-type:refresh_token"

	// TokenTypeSessionTransfer identifies a session transfer token in a
	// token exchange.
	TokenTypeSessionTransfer = "urn:auth0:params:oauth:token-type:session_transfer_token"

	grantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"
)

// SSOCredentials are the result of exchanging a refresh token for a session
// transfer token.
type SSOCredentials struct {
	SessionTransferToken SessionTransferToken
	TokenType            string
	IssuedTokenType      string

	// ExpiresAt is the absolute expiry of SessionTransferToken.
	ExpiresAt time.Time

	IDToken IDToken

	// RefreshToken is set when the provider rotated the refresh token.
	RefreshToken RefreshToken
}

func parseSSOResponse(body []byte, now time.Time) (*SSOCredentials, error) {
	const op = "oidc.parseSSOResponse"
	var r tokenResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidResponse, err)
	}
	if r.AccessToken == "" || r.IssuedTokenType == "" {
		return nil, fmt.Errorf("%s: access_token and issued_token_type are required: %w", op, ErrInvalidResponse)
	}
	return &SSOCredentials{
		SessionTransferToken: SessionTransferToken(r.AccessToken),
		TokenType:            r.TokenType,
		IssuedTokenType:      r.IssuedTokenType,
		ExpiresAt:            r.ExpiresIn.at(now),
		IDToken:              IDToken(r.IDToken),
		RefreshToken:         RefreshToken(r.RefreshToken),
	}, nil
}
