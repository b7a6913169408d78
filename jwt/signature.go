// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/go-hclog"
)

// SignatureVerifier verifies the signature of a decoded token.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, t *Token) error
}

// SignatureValidator verifies RS256 signatures with keys resolved from a
// JWKSFetcher by key id. The key set is fetched on every call; wrap the
// fetcher with NewCachingJWKS to cache it.
type SignatureValidator struct {
	keys   JWKSFetcher
	logger hclog.Logger
}

var _ SignatureVerifier = (*SignatureValidator)(nil)

// NewSignatureValidator creates a SignatureValidator.
//
// Supported options: WithLogger
func NewSignatureValidator(keys JWKSFetcher, opt ...Option) (*SignatureValidator, error) {
	const op = "jwt.NewSignatureValidator"
	if keys == nil {
		return nil, fmt.Errorf("%s: key set fetcher is nil: %w", op, ErrNilParameter)
	}
	opts := getSignatureOpts(opt...)
	return &SignatureValidator{
		keys:   keys,
		logger: opts.withLogger,
	}, nil
}

// VerifySignature implements SignatureVerifier. It returns an
// *AlgorithmError, a *MissingPublicKeyError or ErrInvalidSignature.
func (v *SignatureValidator) VerifySignature(ctx context.Context, t *Token) error {
	const op = "SignatureValidator.VerifySignature"
	if t == nil {
		return fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	if t.Header.Algorithm != RS256 {
		return &AlgorithmError{Actual: t.Header.Algorithm, Expected: RS256}
	}
	kid := t.Header.KeyID
	if kid == "" {
		return &MissingPublicKeyError{}
	}
	set, err := v.keys.FetchJWKS(ctx)
	if err != nil {
		v.logger.Debug("unable to fetch jwks", "kid", kid, "error", err)
		return &MissingPublicKeyError{KeyID: kid, Cause: err}
	}
	jwk, ok := set.Key(kid)
	if !ok {
		return &MissingPublicKeyError{KeyID: kid}
	}
	pub, err := jwk.RSAPublicKey(RS256)
	if err != nil {
		v.logger.Debug("jwks key is not usable", "kid", kid, "error", err)
		return &MissingPublicKeyError{KeyID: kid}
	}

	jws, err := jose.ParseSigned(t.Raw(), []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}
	if _, err := jws.Verify(pub); err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}
	return nil
}
