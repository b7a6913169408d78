// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrNotFound         = errors.New("not found")
	ErrNoCredentials    = errors.New("no credentials")
	ErrNoRefreshToken   = errors.New("no refresh token")
	ErrRefreshFailed    = errors.New("refresh failed")
	ErrLargeMinTTL      = errors.New("minimum ttl exceeds token lifetime")
	ErrBiometricsFailed = errors.New("biometric authentication failed")
	ErrRevokeFailed     = errors.New("revoke failed")
	ErrStoreFailed      = errors.New("unable to store credentials")
	ErrExchangeFailed   = errors.New("session transfer exchange failed")
)

// LargeMinTTLError is returned when refreshed credentials still expire
// within the requested minimum ttl. It is both an ErrRefreshFailed and an
// ErrLargeMinTTL.
type LargeMinTTLError struct {
	MinTTL   time.Duration
	Lifetime time.Duration
}

func (e *LargeMinTTLError) Error() string {
	return fmt.Sprintf("%s: %s: the minimum ttl requested (%s) is greater than the lifetime of the renewed access token (%s)",
		ErrRefreshFailed, ErrLargeMinTTL, e.MinTTL, e.Lifetime)
}

func (e *LargeMinTTLError) Unwrap() []error { return []error{ErrRefreshFailed, ErrLargeMinTTL} }
