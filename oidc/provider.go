// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	"github.com/hashicorp/capauth/jwt"
	sdkhttp "github.com/hashicorp/capauth/sdk/http"
)

// Provider sends the authentication API requests of a public client: code
// exchange, refresh, revocation, session transfer and social token login. It
// also builds the authorize, logout and PAR urls.
type Provider struct {
	config *Config
	client *http.Client
	keys   *jwt.RemoteJWKS
	logger hclog.Logger
	now    func() time.Time
}

// NewProvider creates a Provider for the config. No request is sent; use
// Discover first to read the endpoints from the issuer.
//
// Supported options: WithHTTPClient, WithLogger, WithNow
func NewProvider(c *Config, opt ...Option) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		var err error
		if client, err = c.HttpClient(); err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
	}
	keys, err := jwt.NewRemoteJWKS(c.Endpoints.JWKSURL, jwt.WithHTTPClient(client), jwt.WithLogger(opts.withLogger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Provider{
		config: c,
		client: client,
		keys:   keys,
		logger: opts.withLogger,
		now:    opts.withNow,
	}, nil
}

// Config returns the provider's config.
func (p *Provider) Config() *Config { return p.config }

// KeySet returns the provider's JWKS. Every fetch hits the jwks endpoint;
// wrap it with jwt.NewCachingJWKS to cache it.
func (p *Provider) KeySet() *jwt.RemoteJWKS { return p.keys }

// ValidatorContext returns the id_token validation context for an
// authentication attempt using nonce.
func (p *Provider) ValidatorContext(nonce string) *jwt.ValidatorContext {
	return p.config.ValidatorContext(p.keys, nonce)
}

func (p *Provider) oauth2Config(redirectURL string, scopes []string) *oauth2.Config {
	if redirectURL == "" {
		redirectURL = p.config.RedirectURL
	}
	if len(scopes) == 0 {
		scopes = p.config.Scopes
	}
	return &oauth2.Config{
		ClientID:    p.config.ClientID,
		RedirectURL: redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.config.Endpoints.AuthURL,
			TokenURL:  p.config.Endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: strings.Fields(ScopeString(scopes)),
	}
}

// AuthURL will generate a URL the caller can use to kick off an
// authentication request. The state identifies the attempt and must differ
// from the nonce.
//
// Supported options: WithResponseType, WithPKCE, WithScopes, WithAudience,
// WithOrganization, WithInvitation, WithConnection, WithMaxAge,
// WithUILocales, WithParameters, WithRedirectURL
func (p *Provider) AuthURL(state, nonce string, opt ...Option) (string, error) {
	const op = "Provider.AuthURL"
	if state == "" {
		return "", fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	if state == nonce {
		return "", fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	opts := getAuthURLOpts(opt...)
	if opts.withResponseType == 0 {
		return "", fmt.Errorf("%s: response type is empty: %w", op, ErrInvalidParameter)
	}
	if opts.withResponseType.Has(ResponseTypeIDToken) && nonce == "" {
		return "", fmt.Errorf("%s: a nonce is required when requesting an id_token: %w", op, ErrInvalidParameter)
	}

	params := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", opts.withResponseType.String()),
	}
	if nonce != "" {
		params = append(params, oidc.Nonce(nonce))
	}
	if opts.withVerifier != nil {
		if opts.withVerifier.Method() != S256 {
			return "", fmt.Errorf("%s: %s: %w", op, opts.withVerifier.Method(), ErrUnsupportedChallengeMethod)
		}
		params = append(params, oauth2.S256ChallengeOption(opts.withVerifier.Verifier()))
	}
	aud := p.config.Audience
	if opts.withAudience != "" {
		aud = opts.withAudience
	}
	org := p.config.Organization
	if opts.withOrganization != "" {
		org = opts.withOrganization
	}
	maxAge := p.config.MaxAge
	if opts.withMaxAge != nil {
		maxAge = opts.withMaxAge
	}
	set := func(k, v string) {
		if v != "" {
			params = append(params, oauth2.SetAuthURLParam(k, v))
		}
	}
	set("audience", aud)
	set("organization", org)
	set("invitation", opts.withInvitation)
	set("connection", opts.withConnection)
	if maxAge != nil {
		set("max_age", strconv.FormatInt(int64(maxAge.Seconds()), 10))
	}
	if len(opts.withUILocales) > 0 {
		locales := make([]string, 0, len(opts.withUILocales))
		for _, l := range opts.withUILocales {
			locales = append(locales, l.String())
		}
		set("ui_locales", strings.Join(locales, " "))
	}
	for k, v := range opts.withParameters {
		if k == "state" {
			continue
		}
		params = append(params, oauth2.SetAuthURLParam(k, v))
	}
	return p.oauth2Config(opts.withRedirectURL, opts.withScopes).AuthCodeURL(state, params...), nil
}

// PARAuthorizeURL returns the authorize url for a pushed authorization
// request.
func (p *Provider) PARAuthorizeURL(requestURI string) (string, error) {
	const op = "Provider.PARAuthorizeURL"
	if requestURI == "" {
		return "", fmt.Errorf("%s: request uri is empty: %w", op, ErrInvalidParameter)
	}
	return withQuery(p.config.Endpoints.AuthURL, url.Values{
		"client_id":   {p.config.ClientID},
		"request_uri": {requestURI},
	})
}

// LogoutURL returns the url which clears the provider's session and then
// redirects to returnTo. When federated is set the upstream identity
// provider's session is cleared too.
func (p *Provider) LogoutURL(returnTo string, federated bool) (string, error) {
	const op = "Provider.LogoutURL"
	if p.config.Endpoints.LogoutURL == "" {
		return "", fmt.Errorf("%s: logout endpoint is not configured: %w", op, ErrInvalidParameter)
	}
	q := url.Values{"client_id": {p.config.ClientID}}
	if returnTo != "" {
		q.Set("returnTo", returnTo)
	}
	if federated {
		q.Set("federated", "")
	}
	return withQuery(p.config.Endpoints.LogoutURL, q)
}

func withQuery(base string, q url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("unable to parse %s: %w: %w", base, ErrInvalidParameter, err)
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}

// Exchange will request credentials from the token endpoint using the
// authorization code and the PKCE verifier of the attempt. The id_token, if
// any, is not validated; see PKCEGrant.
func (p *Provider) Exchange(ctx context.Context, code, verifier, redirectURL string) (*Credentials, error) {
	const op = "Provider.Exchange"
	if code == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	opts := []oauth2.AuthCodeOption{}
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	p.logger.Trace("exchanging authorization code", "op", op, "url", p.config.Endpoints.TokenURL)
	tk, err := p.oauth2Config(redirectURL, nil).Exchange(HttpClientContext(ctx, p.client), code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		var urlErr *url.Error
		switch {
		case errors.As(err, &retrieveErr):
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return nil, fmt.Errorf("%s: %w", op, NewAuthenticationError(status, retrieveErr.Body))
		case errors.As(err, &urlErr):
			return nil, fmt.Errorf("%s: %w", op, NewNetworkError(err))
		default:
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidResponse, err)
		}
	}
	expiresAt, err := expiresAtFromExtra(tk.Extra("expires_in"), p.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c := &Credentials{
		AccessToken:  AccessToken(tk.AccessToken),
		TokenType:    tk.TokenType,
		RefreshToken: RefreshToken(tk.RefreshToken),
		ExpiresAt:    expiresAt,
	}
	if s, ok := tk.Extra("id_token").(string); ok {
		c.IDToken = IDToken(s)
	}
	if s, ok := tk.Extra("scope").(string); ok {
		c.Scope = s
	}
	if s, ok := tk.Extra("recovery_code").(string); ok {
		c.RecoveryCode = s
	}
	return c, nil
}

// expiresAtFromExtra resolves the expires_in extra of an oauth2 token. A
// missing value yields now.
func expiresAtFromExtra(v interface{}, now time.Time) (time.Time, error) {
	var raw string
	switch n := v.(type) {
	case nil:
		return now, nil
	case float64:
		raw = strconv.FormatFloat(n, 'g', -1, 64)
	case string:
		raw = n
	case json.Number:
		raw = n.String()
	default:
		return time.Time{}, fmt.Errorf("oidc.expiresAtFromExtra: expires_in is a %T: %w", v, ErrInvalidResponse)
	}
	d, err := parseExpiresIn(raw)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(d), nil
}

// Refresh requests new credentials using refreshToken. The scope is sent
// when not empty. Extra params are added to the request body.
func (p *Provider) Refresh(ctx context.Context, refreshToken RefreshToken, scope string, params map[string]string) (*Credentials, error) {
	const op = "Provider.Refresh"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	form := formWith(params)
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", p.config.ClientID)
	form.Set("refresh_token", string(refreshToken))
	if scope != "" {
		form.Set("scope", scope)
	}
	body, err := p.post(ctx, p.config.Endpoints.TokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c, err := parseTokenResponse(body, p.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Revoke revokes refreshToken at the revocation endpoint.
func (p *Provider) Revoke(ctx context.Context, refreshToken RefreshToken, params map[string]string) error {
	const op = "Provider.Revoke"
	if refreshToken == "" {
		return fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	if p.config.Endpoints.RevokeURL == "" {
		return fmt.Errorf("%s: revocation endpoint is not configured: %w", op, ErrInvalidParameter)
	}
	form := formWith(params)
	form.Set("client_id", p.config.ClientID)
	form.Set("token", string(refreshToken))
	if _, err := p.post(ctx, p.config.Endpoints.RevokeURL, form); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SSOExchange exchanges refreshToken for a session transfer token.
func (p *Provider) SSOExchange(ctx context.Context, refreshToken RefreshToken, params map[string]string) (*SSOCredentials, error) {
	const op = "Provider.SSOExchange"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	form := formWith(params)
	form.Set("grant_type", grantTypeTokenExchange)
	form.Set("client_id", p.config.ClientID)
	form.Set("subject_token", string(refreshToken))
	form.Set("subject_token_type", TokenTypeRefreshToken)
	form.Set("requested_token_type", TokenTypeSessionTransfer)
	body, err := p.post(ctx, p.config.Endpoints.TokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c, err := parseSSOResponse(body, p.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// LoginSocial exchanges an access token issued by a third party identity
// provider for credentials, using the named connection.
func (p *Provider) LoginSocial(ctx context.Context, accessToken AccessToken, connection string, params map[string]string) (*Credentials, error) {
	const op = "Provider.LoginSocial"
	switch {
	case accessToken == "":
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	case connection == "":
		return nil, fmt.Errorf("%s: connection is empty: %w", op, ErrInvalidParameter)
	case p.config.Endpoints.SocialTokenURL == "":
		return nil, fmt.Errorf("%s: social token endpoint is not configured: %w", op, ErrInvalidParameter)
	}
	form := formWith(params)
	form.Set("client_id", p.config.ClientID)
	form.Set("access_token", string(accessToken))
	form.Set("connection", connection)
	if form.Get("scope") == "" {
		form.Set("scope", p.config.ScopeString())
	}
	body, err := p.post(ctx, p.config.Endpoints.SocialTokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c, err := parseTokenResponse(body, p.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// post sends form to u. Transport failures and non 2xx responses are
// returned as an *AuthenticationError.
func (p *Provider) post(ctx context.Context, u string, form url.Values) ([]byte, error) {
	p.logger.Trace("sending request", "url", u, "grant_type", form.Get("grant_type"))
	status, body, err := sdkhttp.PostForm(ctx, p.client, u, form, nil)
	switch {
	case err != nil:
		return nil, NewNetworkError(err)
	case status < 200 || status > 299:
		return nil, NewAuthenticationError(status, body)
	}
	return body, nil
}

func formWith(params map[string]string) url.Values {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	return form
}
