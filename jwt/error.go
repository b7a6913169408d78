// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error kinds. Every validation error returned by this package matches
// exactly one of these with errors.Is.
var (
	ErrDecoding  = errors.New("id token decoding error")
	ErrSignature = errors.New("id token signature error")
	ErrClaim     = errors.New("id token claim error")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrJWKSFetchFailed  = errors.New("jwks fetch failed")

	ErrCannotDecode = fmt.Errorf("%w: cannot decode", ErrDecoding)

	ErrInvalidAlgorithm = fmt.Errorf("%w: invalid algorithm", ErrSignature)
	ErrMissingPublicKey = fmt.Errorf("%w: missing public key", ErrSignature)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrSignature)

	ErrMissingIss          = fmt.Errorf("%w: missing iss", ErrClaim)
	ErrMismatchedIss       = fmt.Errorf("%w: mismatched iss", ErrClaim)
	ErrMissingSub          = fmt.Errorf("%w: missing sub", ErrClaim)
	ErrMissingAud          = fmt.Errorf("%w: missing aud", ErrClaim)
	ErrMismatchedAudString = fmt.Errorf("%w: mismatched aud", ErrClaim)
	ErrMismatchedAudArray  = fmt.Errorf("%w: mismatched aud array", ErrClaim)
	ErrMissingExp          = fmt.Errorf("%w: missing exp", ErrClaim)
	ErrPastExp             = fmt.Errorf("%w: past exp", ErrClaim)
	ErrMissingIat          = fmt.Errorf("%w: missing iat", ErrClaim)
	ErrMissingNonce        = fmt.Errorf("%w: missing nonce", ErrClaim)
	ErrMismatchedNonce     = fmt.Errorf("%w: mismatched nonce", ErrClaim)
	ErrMissingAzp          = fmt.Errorf("%w: missing azp", ErrClaim)
	ErrMismatchedAzp       = fmt.Errorf("%w: mismatched azp", ErrClaim)
	ErrMissingAuthTime     = fmt.Errorf("%w: missing auth_time", ErrClaim)
	ErrPastLastAuth        = fmt.Errorf("%w: past last auth", ErrClaim)
	ErrMissingOrgID        = fmt.Errorf("%w: missing org_id", ErrClaim)
	ErrMismatchedOrgID     = fmt.Errorf("%w: mismatched org_id", ErrClaim)
)

// AlgorithmError is returned when a token declares an algorithm other than
// the one accepted.
type AlgorithmError struct {
	Actual   string
	Expected string
}

func (e *AlgorithmError) Error() string {
	return fmt.Sprintf("signature algorithm of the ID token (%s) is not supported, expected (%s)", e.Actual, e.Expected)
}

func (e *AlgorithmError) Unwrap() error { return ErrInvalidAlgorithm }

// MissingPublicKeyError is returned when no usable key could be resolved for
// the token's key id. Cause is set when the key set could not be fetched.
type MissingPublicKeyError struct {
	KeyID string
	Cause error
}

func (e *MissingPublicKeyError) Error() string {
	msg := fmt.Sprintf("could not find a public key for key id (%s)", e.KeyID)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause)
	}
	return msg
}

func (e *MissingPublicKeyError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrMissingPublicKey, e.Cause}
	}
	return []error{ErrMissingPublicKey}
}

// ClaimError reports a missing or mismatched string claim. Err is one of the
// ErrMissing*/ErrMismatched* sentinels. ActualValues is only set for
// ErrMismatchedAudArray.
type ClaimError struct {
	Err          error
	Actual       string
	ActualValues []string
	Expected     string
}

func (e *ClaimError) Error() string {
	switch e.Err {
	case ErrMissingIss:
		return "issuer (iss) claim must be a string present in the ID token"
	case ErrMismatchedIss:
		return fmt.Sprintf("issuer (iss) claim mismatch in the ID token, expected (%s), found (%s)", e.Expected, e.Actual)
	case ErrMissingSub:
		return "subject (sub) claim must be a string present in the ID token"
	case ErrMissingAud:
		return "audience (aud) claim must be a string or array of strings present in the ID token"
	case ErrMismatchedAudString:
		return fmt.Sprintf("audience (aud) claim mismatch in the ID token; expected (%s) but found (%s)", e.Expected, e.Actual)
	case ErrMismatchedAudArray:
		return fmt.Sprintf("audience (aud) claim mismatch in the ID token; expected (%s) but was not one of (%s)", e.Expected, strings.Join(e.ActualValues, ", "))
	case ErrMissingExp:
		return "expiration time (exp) claim must be a number present in the ID token"
	case ErrMissingIat:
		return "issued at (iat) claim must be a number present in the ID token"
	case ErrMissingNonce:
		return "nonce (nonce) claim must be a string present in the ID token"
	case ErrMismatchedNonce:
		return fmt.Sprintf("nonce (nonce) claim value mismatch in the ID token; expected (%s), found (%s)", e.Expected, e.Actual)
	case ErrMissingAzp:
		return "authorized party (azp) claim must be a string present in the ID token when audience (aud) claim has multiple values"
	case ErrMismatchedAzp:
		return fmt.Sprintf("authorized party (azp) claim mismatch in the ID token; expected (%s), found (%s)", e.Expected, e.Actual)
	case ErrMissingAuthTime:
		return "authentication time (auth_time) claim must be a number present in the ID token when max age (max_age) is specified"
	case ErrMissingOrgID:
		return "organization id (org_id) claim must be a string present in the ID token"
	case ErrMismatchedOrgID:
		return fmt.Sprintf("organization id (org_id) claim value mismatch in the ID token; expected (%s), found (%s)", e.Expected, e.Actual)
	default:
		return fmt.Sprintf("%s: expected (%s), found (%s)", e.Err, e.Expected, e.Actual)
	}
}

func (e *ClaimError) Unwrap() error { return e.Err }

// TimeClaimError reports a time based claim that is no longer acceptable.
// Limit is the claim value with every allowance (leeway, max age) applied.
type TimeClaimError struct {
	Err      error
	BaseTime time.Time
	Limit    time.Time
}

func (e *TimeClaimError) Error() string {
	switch e.Err {
	case ErrPastLastAuth:
		return fmt.Sprintf("authentication time (auth_time) claim in the ID token indicates that too much time has passed since the last end-user authentication; current time (%d) is after last auth time (%d)", e.BaseTime.Unix(), e.Limit.Unix())
	default:
		return fmt.Sprintf("expiration time (exp) claim error in the ID token; current time (%d) is after expiration time (%d)", e.BaseTime.Unix(), e.Limit.Unix())
	}
}

func (e *TimeClaimError) Unwrap() error { return e.Err }
