// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/capauth/jwt"
)

// Grant turns the parameters of an authentication callback into validated
// credentials. Either fully validated credentials or an error are returned.
type Grant interface {
	Credentials(ctx context.Context, items map[string]string) (*Credentials, error)
}

// IDTokenValidatorFunc validates an id_token against vctx.
type IDTokenValidatorFunc func(ctx context.Context, idToken string, vctx *jwt.ValidatorContext) error

func defaultIDTokenValidator(ctx context.Context, idToken string, vctx *jwt.ValidatorContext) error {
	return jwt.ValidateIDToken(ctx, idToken, vctx)
}

// CodeExchanger exchanges an authorization code at the token endpoint.
// Provider implements it.
type CodeExchanger interface {
	Exchange(ctx context.Context, code, verifier, redirectURL string) (*Credentials, error)
}

var (
	_ CodeExchanger = (*Provider)(nil)
	_ Grant         = (*PKCEGrant)(nil)
	_ Grant         = (*ImplicitGrant)(nil)
)

// PKCEGrant completes the authorization code flow with PKCE.
type PKCEGrant struct {
	exchanger   CodeExchanger
	verifier    CodeVerifier
	redirectURL string
	vctx        *jwt.ValidatorContext
	validate    IDTokenValidatorFunc
	logger      hclog.Logger
}

// NewPKCEGrant creates a grant for one authentication attempt. The verifier
// is the one whose challenge was sent to the authorize endpoint and vctx is
// bound to the attempt's nonce.
//
// Supported options: WithIDTokenValidator, WithLogger
func NewPKCEGrant(exchanger CodeExchanger, verifier CodeVerifier, redirectURL string, vctx *jwt.ValidatorContext, opt ...Option) (*PKCEGrant, error) {
	const op = "oidc.NewPKCEGrant"
	switch {
	case exchanger == nil:
		return nil, fmt.Errorf("%s: code exchanger is nil: %w", op, ErrNilParameter)
	case verifier == nil:
		return nil, fmt.Errorf("%s: code verifier is nil: %w", op, ErrNilParameter)
	case vctx == nil:
		return nil, fmt.Errorf("%s: validator context is nil: %w", op, ErrNilParameter)
	case redirectURL == "":
		return nil, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	opts := getGrantOpts(opt...)
	return &PKCEGrant{
		exchanger:   exchanger,
		verifier:    verifier,
		redirectURL: redirectURL,
		vctx:        vctx,
		validate:    opts.withValidator,
		logger:      opts.withLogger,
	}, nil
}

// Verifier returns the grant's PKCE verifier.
func (g *PKCEGrant) Verifier() CodeVerifier { return g.verifier }

// Credentials exchanges the code in items. No request is sent when items
// has no code. An id_token in the response must pass validation.
func (g *PKCEGrant) Credentials(ctx context.Context, items map[string]string) (*Credentials, error) {
	const op = "PKCEGrant.Credentials"
	code := items["code"]
	if code == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoAuthorizationCode)
	}
	c, err := g.exchanger.Exchange(ctx, code, g.verifier.Verifier(), g.redirectURL)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) && (authErr.StatusCode == http.StatusUnauthorized || authErr.Description() == "Unauthorized") {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrPKCENotAllowed, err)
		}
		return nil, fmt.Errorf("%s: unable to exchange authorization code: %w", op, err)
	}
	if c.IDToken != "" {
		if err := g.validate(ctx, string(c.IDToken), g.vctx); err != nil {
			g.logger.Debug("id_token validation failed", "op", op, "error", err)
			return nil, fmt.Errorf("%s: %w: %w", op, ErrIDTokenValidationFailed, err)
		}
	}
	return c, nil
}

// ImplicitGrant completes the implicit flow, where the tokens are in the
// callback parameters.
type ImplicitGrant struct {
	responseType ResponseType
	vctx         *jwt.ValidatorContext
	validate     IDTokenValidatorFunc
	now          func() time.Time
	logger       hclog.Logger
}

// NewImplicitGrant creates a grant for responseType, which must not include
// ResponseTypeCode. vctx is required when an id_token is requested.
//
// Supported options: WithIDTokenValidator, WithNow, WithLogger
func NewImplicitGrant(responseType ResponseType, vctx *jwt.ValidatorContext, opt ...Option) (*ImplicitGrant, error) {
	const op = "oidc.NewImplicitGrant"
	if !responseType.IsImplicit() {
		return nil, fmt.Errorf("%s: response type %q is not implicit: %w", op, responseType, ErrInvalidParameter)
	}
	if responseType.Has(ResponseTypeIDToken) && vctx == nil {
		return nil, fmt.Errorf("%s: validator context is nil: %w", op, ErrNilParameter)
	}
	opts := getGrantOpts(opt...)
	return &ImplicitGrant{
		responseType: responseType,
		vctx:         vctx,
		validate:     opts.withValidator,
		now:          opts.withNow,
		logger:       opts.withLogger,
	}, nil
}

// ResponseType returns the grant's response type.
func (g *ImplicitGrant) ResponseType() ResponseType { return g.responseType }

// Credentials builds credentials from the tokens in items. Every token the
// response type demands must be present, and an id_token must pass
// validation.
func (g *ImplicitGrant) Credentials(ctx context.Context, items map[string]string) (*Credentials, error) {
	const op = "ImplicitGrant.Credentials"
	c, err := credentialsFromParams(items, g.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if g.responseType.Has(ResponseTypeToken) && (c.AccessToken == "" || c.TokenType == "") {
		return nil, fmt.Errorf("%s: access_token and token_type are required: %w", op, ErrNoCredentials)
	}
	if g.responseType.Has(ResponseTypeIDToken) {
		if c.IDToken == "" {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrNoCredentials, ErrMissingIdToken)
		}
		if err := g.validate(ctx, string(c.IDToken), g.vctx); err != nil {
			g.logger.Debug("id_token validation failed", "op", op, "error", err)
			return nil, fmt.Errorf("%s: %w: %w", op, ErrIDTokenValidationFailed, err)
		}
	}
	return c, nil
}
