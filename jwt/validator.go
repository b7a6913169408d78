// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// DefaultLeeway is the clock skew allowed when checking exp and auth_time.
const DefaultLeeway = 60 * time.Second

// ValidatorContext is the configuration for validating the id_token of one
// authentication attempt.
type ValidatorContext struct {
	// Issuer must match the iss claim exactly, trailing slash included.
	Issuer string

	// Audience is the client id. It must be the aud claim or one of its
	// values.
	Audience string

	// KeySet resolves the keys used to verify signatures.
	KeySet JWKSFetcher

	Leeway time.Duration

	// MaxAge enables the auth_time check when set.
	MaxAge *time.Duration

	// Nonce enables the nonce check when not empty.
	Nonce string

	// Organization enables the org_id check when not empty.
	Organization string
}

// Validate the context.
func (c *ValidatorContext) Validate() error {
	const op = "ValidatorContext.Validate"
	if c == nil {
		return fmt.Errorf("%s: validator context is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.Issuer == "" {
		result = multierror.Append(result, fmt.Errorf("issuer is empty: %w", ErrInvalidParameter))
	}
	if c.Audience == "" {
		result = multierror.Append(result, fmt.Errorf("audience is empty: %w", ErrInvalidParameter))
	}
	if c.KeySet == nil {
		result = multierror.Append(result, fmt.Errorf("key set is nil: %w", ErrNilParameter))
	}
	if c.Leeway < 0 {
		result = multierror.Append(result, fmt.Errorf("leeway is negative: %w", ErrInvalidParameter))
	}
	if c.MaxAge != nil && *c.MaxAge < 0 {
		result = multierror.Append(result, fmt.Errorf("max age is negative: %w", ErrInvalidParameter))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IDTokenValidator validates an id_token's signature and then its claims.
type IDTokenValidator struct {
	vctx      ValidatorContext
	signature SignatureVerifier
	claims    ClaimValidator
	now       func() time.Time
	skipAzp   bool
	logger    hclog.Logger
}

// NewIDTokenValidator creates a validator for the given context.
//
// Supported options: WithSignatureVerifier, WithClaimValidator, WithNow,
// WithSkipAuthorizedParty, WithLogger
func NewIDTokenValidator(vctx *ValidatorContext, opt ...Option) (*IDTokenValidator, error) {
	const op = "jwt.NewIDTokenValidator"
	if err := vctx.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getValidatorOpts(opt...)
	v := &IDTokenValidator{
		vctx:      *vctx,
		signature: opts.withSignatureVerifier,
		claims:    opts.withClaimValidator,
		now:       opts.withNow,
		skipAzp:   opts.withSkipAuthorizedParty,
		logger:    opts.withLogger,
	}
	if v.signature == nil {
		sv, err := NewSignatureValidator(vctx.KeySet, WithLogger(opts.withLogger))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		v.signature = sv
	}
	return v, nil
}

// Validate decodes idToken, verifies its signature and then validates its
// claims. Claims are never inspected when the signature check fails.
func (v *IDTokenValidator) Validate(ctx context.Context, idToken string) error {
	const op = "IDTokenValidator.Validate"
	t, err := Decode(idToken)
	if err != nil {
		return err
	}
	if err := v.signature.VerifySignature(ctx, t); err != nil {
		v.logger.Debug("id_token signature validation failed", "op", op, "error", err)
		return err
	}
	claims := v.claims
	if claims == nil {
		claims = v.defaultClaims(t, v.now())
	}
	if err := claims.ValidateClaims(t); err != nil {
		v.logger.Debug("id_token claims validation failed", "op", op, "error", err)
		return err
	}
	return nil
}

// defaultClaims builds the claim validators for t. All time checks share
// baseTime.
func (v *IDTokenValidator) defaultClaims(t *Token, baseTime time.Time) *ClaimsValidator {
	validators := []ClaimValidator{
		IssValidator{Expected: v.vctx.Issuer},
		SubValidator{},
		AudValidator{Expected: v.vctx.Audience},
		ExpValidator{BaseTime: baseTime, Leeway: v.vctx.Leeway},
		IatValidator{},
	}
	if v.vctx.Nonce != "" {
		validators = append(validators, NonceValidator{Expected: v.vctx.Nonce})
	}
	if aud, ok := t.Claims.Audience(); ok && len(aud) > 1 && !v.skipAzp {
		validators = append(validators, AzpValidator{Expected: v.vctx.Audience})
	}
	if v.vctx.MaxAge != nil {
		validators = append(validators, AuthTimeValidator{BaseTime: baseTime, Leeway: v.vctx.Leeway, MaxAge: *v.vctx.MaxAge})
	}
	if v.vctx.Organization != "" {
		validators = append(validators, OrgIDValidator{Expected: v.vctx.Organization})
	}
	return NewClaimsValidator(validators...)
}

// ValidateIDToken is a convenience for NewIDTokenValidator(vctx,
// opt...).Validate(ctx, idToken).
func ValidateIDToken(ctx context.Context, idToken string, vctx *ValidatorContext, opt ...Option) error {
	v, err := NewIDTokenValidator(vctx, opt...)
	if err != nil {
		return err
	}
	return v.Validate(ctx, idToken)
}
