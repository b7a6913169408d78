// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp/capauth/jwt"
	sdkhttp "github.com/hashicorp/capauth/sdk/http"
)

// DefaultScopes are requested when no scopes are configured.
var DefaultScopes = []string{oidc.ScopeOpenID, "profile", "email"}

// Endpoints are the provider URLs used by the flows in this module.
type Endpoints struct {
	AuthURL        string
	TokenURL       string
	RevokeURL      string
	JWKSURL        string
	LogoutURL      string
	PARURL         string
	SocialTokenURL string
	UserInfoURL    string
}

// DefaultEndpoints derives the endpoints from issuer using the conventional
// paths. Use Discover to read them from the provider's metadata instead.
func DefaultEndpoints(issuer string) Endpoints {
	base := strings.TrimSuffix(issuer, "/") + "/"
	return Endpoints{
		AuthURL:        base + "authorize",
		TokenURL:       base + "oauth/token",
		RevokeURL:      base + "oauth/revoke",
		JWKSURL:        base + ".well-known/jwks.json",
		LogoutURL:      base + "v2/logout",
		PARURL:         base + "oauth/par",
		SocialTokenURL: base + "oauth/access_token",
		UserInfoURL:    base + "userinfo",
	}
}

// Config represents the configuration of a public (native) client using the
// authorization code flow with PKCE, or the implicit flow.
type Config struct {
	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components. It must match the id_token iss
	// claim exactly, so the trailing slash matters.
	Issuer string

	// ClientID is the relying party id
	ClientID string

	// RedirectURL is where the provider sends the authentication response.
	RedirectURL string

	// Scopes requested. The "openid" scope is always added.
	Scopes []string

	// Audience is an optional API identifier to request access tokens for.
	Audience string

	// Organization is an optional organization id or name. When set, the
	// id_token's org_id claim must match it.
	Organization string

	// Leeway is the clock skew allowed when validating id_tokens.
	Leeway time.Duration

	// MaxAge is the optional max_age authentication request parameter. When
	// set, the id_token's auth_time claim is validated.
	MaxAge *time.Duration

	// ProviderCA is an optional CA cert to use when sending requests to the provider.
	ProviderCA string

	Endpoints Endpoints
}

// NewConfig composes a new config for a provider.
//
// Supported options: WithScopes, WithAudience, WithOrganization, WithLeeway,
// WithMaxAge, WithProviderCA, WithEndpoints
func NewConfig(issuer, clientID, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:       issuer,
		ClientID:     clientID,
		RedirectURL:  redirectURL,
		Scopes:       opts.withScopes,
		Audience:     opts.withAudience,
		Organization: opts.withOrganization,
		Leeway:       opts.withLeeway,
		MaxAge:       opts.withMaxAge,
		ProviderCA:   opts.withProviderCA,
		Endpoints:    DefaultEndpoints(issuer),
	}
	if opts.withEndpoints != nil {
		c.Endpoints = *opts.withEndpoints
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration. It doesn't verify the Issuer is
// discoverable via an http request.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrInvalidParameter))
	}
	if c.RedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("redirect URL is empty: %w", ErrInvalidParameter))
	}
	if c.Issuer == "" {
		result = multierror.Append(result, fmt.Errorf("issuer is empty: %w", ErrInvalidIssuer))
	} else {
		u, err := url.Parse(c.Issuer)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("issuer %s is invalid: %w: %w", c.Issuer, ErrInvalidIssuer, err))
		case u.Scheme != "https" && u.Scheme != "http":
			result = multierror.Append(result, fmt.Errorf("issuer %s schema is not http or https: %w", c.Issuer, ErrInvalidIssuer))
		case u.RawQuery != "" || u.Fragment != "":
			result = multierror.Append(result, fmt.Errorf("issuer %s has a query or fragment: %w", c.Issuer, ErrInvalidIssuer))
		}
	}
	if c.Leeway < 0 {
		result = multierror.Append(result, fmt.Errorf("leeway is negative: %w", ErrInvalidParameter))
	}
	if c.MaxAge != nil && *c.MaxAge < 0 {
		result = multierror.Append(result, fmt.Errorf("max age is negative: %w", ErrInvalidParameter))
	}
	if c.Endpoints.AuthURL == "" || c.Endpoints.TokenURL == "" || c.Endpoints.JWKSURL == "" {
		result = multierror.Append(result, fmt.Errorf("authorize, token and jwks endpoints are required: %w", ErrInvalidParameter))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ScopeString returns the configured scopes, space separated, always
// including "openid".
func (c *Config) ScopeString() string {
	return ScopeString(c.Scopes)
}

// ScopeString joins scopes with spaces, using DefaultScopes when scopes is
// empty and adding "openid" when it is missing.
func ScopeString(scopes []string) string {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	if !slices.Contains(scopes, oidc.ScopeOpenID) {
		scopes = append([]string{oidc.ScopeOpenID}, scopes...)
	}
	return strings.Join(scopes, " ")
}

// HttpClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	client, err := sdkhttp.NewClient(c.ProviderCA)
	if err != nil {
		if errors.Is(err, sdkhttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	return sdkhttp.ClientContext(ctx, client)
}

// ValidatorContext returns the id_token validation context for one
// authentication attempt using nonce.
func (c *Config) ValidatorContext(keys jwt.JWKSFetcher, nonce string) *jwt.ValidatorContext {
	return &jwt.ValidatorContext{
		Issuer:       c.Issuer,
		Audience:     c.ClientID,
		KeySet:       keys,
		Leeway:       c.Leeway,
		MaxAge:       c.MaxAge,
		Nonce:        nonce,
		Organization: c.Organization,
	}
}

// providerMetadata holds the discovery document members go-oidc doesn't
// expose directly.
type providerMetadata struct {
	JWKSURL     string `json:"jwks_uri"`
	RevokeURL   string `json:"revocation_endpoint"`
	LogoutURL   string `json:"end_session_endpoint"`
	PARURL      string `json:"pushed_authorization_request_endpoint"`
	UserInfoURL string `json:"userinfo_endpoint"`
}

// Discover reads the issuer's /.well-known/openid-configuration and updates
// c.Endpoints with it. Endpoints absent from the document keep their current
// value.
func Discover(ctx context.Context, c *Config) error {
	const op = "oidc.Discover"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	client, err := c.HttpClient()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p, err := oidc.NewProvider(HttpClientContext(ctx, client), c.Issuer)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrDiscoveryFailed, err)
	}
	var md providerMetadata
	if err := p.Claims(&md); err != nil {
		return fmt.Errorf("%s: unable to read provider metadata: %w: %w", op, ErrDiscoveryFailed, err)
	}
	ep := p.Endpoint()
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Endpoints.AuthURL, ep.AuthURL)
	set(&c.Endpoints.TokenURL, ep.TokenURL)
	set(&c.Endpoints.JWKSURL, md.JWKSURL)
	set(&c.Endpoints.RevokeURL, md.RevokeURL)
	set(&c.Endpoints.LogoutURL, md.LogoutURL)
	set(&c.Endpoints.PARURL, md.PARURL)
	set(&c.Endpoints.UserInfoURL, md.UserInfoURL)
	return nil
}
