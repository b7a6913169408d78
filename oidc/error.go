// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrInvalidIssuer              = errors.New("invalid issuer")
	ErrIdGeneratorFailed          = errors.New("id generation failed")
	ErrUnsupportedChallengeMethod = errors.New("unsupported PKCE challenge method")
	ErrDiscoveryFailed            = errors.New("provider discovery failed")
	ErrNetwork                    = errors.New("network error")
	ErrAuthentication             = errors.New("authentication error")
	ErrInvalidResponse            = errors.New("invalid token endpoint response")
	ErrNoCredentials              = errors.New("no credentials in response")
	ErrNoAuthorizationCode        = errors.New("no authorization code")
	ErrPKCENotAllowed             = errors.New("pkce not allowed")
	ErrIDTokenValidationFailed    = errors.New("id_token validation failed")
	ErrMissingIdToken             = errors.New("id_token is missing")
	ErrNotFound                   = errors.New("not found")
)
