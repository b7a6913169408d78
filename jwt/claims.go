// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"slices"
	"time"
)

// ClaimValidator checks one aspect of a decoded token's claims.
type ClaimValidator interface {
	ValidateClaims(t *Token) error
}

// ClaimValidatorFunc adapts a function to a ClaimValidator.
type ClaimValidatorFunc func(t *Token) error

// ValidateClaims implements ClaimValidator.
func (f ClaimValidatorFunc) ValidateClaims(t *Token) error { return f(t) }

// ClaimsValidator runs validators in order and stops at the first failure.
type ClaimsValidator struct {
	validators []ClaimValidator
}

// NewClaimsValidator returns a ClaimsValidator running validators in the
// order given.
func NewClaimsValidator(validators ...ClaimValidator) *ClaimsValidator {
	return &ClaimsValidator{validators: validators}
}

// ValidateClaims returns the first error reported. Validators after it are
// not run.
func (c *ClaimsValidator) ValidateClaims(t *Token) error {
	for _, v := range c.validators {
		if err := v.ValidateClaims(t); err != nil {
			return err
		}
	}
	return nil
}

// IssValidator requires iss to equal Expected exactly.
type IssValidator struct {
	Expected string
}

func (v IssValidator) ValidateClaims(t *Token) error {
	iss, ok := t.Claims.Issuer()
	if !ok {
		return &ClaimError{Err: ErrMissingIss, Expected: v.Expected}
	}
	if iss != v.Expected {
		return &ClaimError{Err: ErrMismatchedIss, Actual: iss, Expected: v.Expected}
	}
	return nil
}

// SubValidator requires a non empty sub.
type SubValidator struct{}

func (SubValidator) ValidateClaims(t *Token) error {
	if sub, ok := t.Claims.Subject(); !ok || sub == "" {
		return &ClaimError{Err: ErrMissingSub}
	}
	return nil
}

// AudValidator requires aud to be Expected, or to contain it when aud is an
// array.
type AudValidator struct {
	Expected string
}

func (v AudValidator) ValidateClaims(t *Token) error {
	aud := t.Claims["aud"]
	if s, ok := aud.Str(); ok {
		if s != v.Expected {
			return &ClaimError{Err: ErrMismatchedAudString, Actual: s, Expected: v.Expected}
		}
		return nil
	}
	list, ok := aud.Strings()
	if !ok || len(list) == 0 {
		return &ClaimError{Err: ErrMissingAud, Expected: v.Expected}
	}
	if !slices.Contains(list, v.Expected) {
		return &ClaimError{Err: ErrMismatchedAudArray, ActualValues: list, Expected: v.Expected}
	}
	return nil
}

// ExpValidator requires exp + Leeway to not be before BaseTime.
type ExpValidator struct {
	BaseTime time.Time
	Leeway   time.Duration
}

func (v ExpValidator) ValidateClaims(t *Token) error {
	exp, ok := t.Claims.ExpiresAt()
	if !ok {
		return &ClaimError{Err: ErrMissingExp}
	}
	limit := exp.Add(v.Leeway)
	if v.BaseTime.After(limit) {
		return &TimeClaimError{Err: ErrPastExp, BaseTime: v.BaseTime, Limit: limit}
	}
	return nil
}

// IatValidator requires iat to be present. Its value is not range checked.
type IatValidator struct{}

func (IatValidator) ValidateClaims(t *Token) error {
	if _, ok := t.Claims.IssuedAt(); !ok {
		return &ClaimError{Err: ErrMissingIat}
	}
	return nil
}

// NonceValidator requires nonce to equal Expected. An empty Expected
// disables the check.
type NonceValidator struct {
	Expected string
}

func (v NonceValidator) ValidateClaims(t *Token) error {
	if v.Expected == "" {
		return nil
	}
	nonce, ok := t.Claims.Str("nonce")
	if !ok {
		return &ClaimError{Err: ErrMissingNonce, Expected: v.Expected}
	}
	if nonce != v.Expected {
		return &ClaimError{Err: ErrMismatchedNonce, Actual: nonce, Expected: v.Expected}
	}
	return nil
}

// AzpValidator requires azp to equal Expected. It only applies when aud
// holds more than one value.
type AzpValidator struct {
	Expected string
}

func (v AzpValidator) ValidateClaims(t *Token) error {
	if aud, ok := t.Claims.Audience(); !ok || len(aud) <= 1 {
		return nil
	}
	azp, ok := t.Claims.Str("azp")
	if !ok {
		return &ClaimError{Err: ErrMissingAzp, Expected: v.Expected}
	}
	if azp != v.Expected {
		return &ClaimError{Err: ErrMismatchedAzp, Actual: azp, Expected: v.Expected}
	}
	return nil
}

// AuthTimeValidator requires auth_time + MaxAge + Leeway to not be before
// BaseTime.
type AuthTimeValidator struct {
	BaseTime time.Time
	Leeway   time.Duration
	MaxAge   time.Duration
}

func (v AuthTimeValidator) ValidateClaims(t *Token) error {
	authTime, ok := t.Claims.Time("auth_time")
	if !ok {
		return &ClaimError{Err: ErrMissingAuthTime}
	}
	limit := authTime.Add(v.MaxAge).Add(v.Leeway)
	if v.BaseTime.After(limit) {
		return &TimeClaimError{Err: ErrPastLastAuth, BaseTime: v.BaseTime, Limit: limit}
	}
	return nil
}

// OrgIDValidator requires org_id to equal Expected.
type OrgIDValidator struct {
	Expected string
}

func (v OrgIDValidator) ValidateClaims(t *Token) error {
	org, ok := t.Claims.Str("org_id")
	if !ok {
		return &ClaimError{Err: ErrMissingOrgID, Expected: v.Expected}
	}
	if org != v.Expected {
		return &ClaimError{Err: ErrMismatchedOrgID, Actual: org, Expected: v.Expected}
	}
	return nil
}
