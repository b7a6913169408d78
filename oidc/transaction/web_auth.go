// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/capauth/oidc"
)

// WebAuth starts web based authentication attempts with a provider. Each
// operation builds a transaction, registers it with the store and presents
// the provider's url with the user agent. The callback url is then routed
// to the transaction with Store.Resume.
type WebAuth struct {
	provider  *oidc.Provider
	userAgent UserAgent
	store     *Store
	challenge oidc.ChallengeGenerator
	grantOpts []oidc.Option
	logger    hclog.Logger
}

// NewWebAuth creates a WebAuth for the provider which presents urls with
// ua.
//
// Supported options: WithStore, WithChallengeGenerator, WithGrantOptions,
// WithLogger
func NewWebAuth(p *oidc.Provider, ua UserAgent, opt ...Option) (*WebAuth, error) {
	const op = "transaction.NewWebAuth"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, ErrNilParameter)
	case ua == nil:
		return nil, fmt.Errorf("%s: user agent is nil: %w", op, ErrNilParameter)
	}
	opts := getWebAuthOpts(opt...)
	return &WebAuth{
		provider:  p,
		userAgent: ua,
		store:     opts.withStore,
		challenge: opts.withChallengeGenerator,
		grantOpts: opts.withGrantOptions,
		logger:    opts.withLogger,
	}, nil
}

// Store returns the store the transactions are registered with.
func (w *WebAuth) Store() *Store { return w.store }

// launcher is a transaction which can be failed before it's presented.
type launcher interface {
	Transaction
	fail(err error)
}

// launch registers t and presents u. A user agent failure resolves t.
func (w *WebAuth) launch(ctx context.Context, t launcher, u string) error {
	const op = "WebAuth.launch"
	w.store.Store(t)
	w.logger.Trace("presenting url", "op", op, "url", u)
	if err := w.userAgent.Start(ctx, u); err != nil {
		err = fmt.Errorf("%s: %w: %w", op, ErrUserAgentFailed, err)
		t.fail(err)
		w.store.clearIf(t)
		return NewWebAuthError(err)
	}
	return nil
}

// Start begins a login. The default response type is oidc.ResponseTypeCode
// which uses PKCE; implicit response types use an implicit grant. The
// transaction's Result delivers the validated credentials.
//
// Supported options: WithState, WithNonce, WithResponseType,
// WithRedirectURL, WithInvitationURL, WithAuthURLOptions
func (w *WebAuth) Start(ctx context.Context, opt ...Option) (*LoginTransaction, error) {
	const op = "WebAuth.Start"
	opts := getStartOpts(opt...)
	redirectURL := opts.withRedirectURL
	if redirectURL == "" {
		redirectURL = w.provider.Config().RedirectURL
	}

	state := opts.withState
	if state == "" {
		var err error
		if state, err = oidc.NewState(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	nonce := opts.withNonce
	if nonce == "" {
		var err error
		if nonce, err = oidc.NewNonce(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	authOpts := append([]oidc.Option{}, opts.withAuthURLOptions...)
	authOpts = append(authOpts, oidc.WithResponseType(opts.withResponseType), oidc.WithRedirectURL(redirectURL))

	vctx := w.provider.ValidatorContext(nonce)
	if opts.withInvitationURL != "" {
		org, invitation, err := parseInvitationURL(opts.withInvitationURL)
		if err != nil {
			return nil, &WebAuthError{Code: InvalidInvitationURL, Cause: fmt.Errorf("%s: %w", op, err)}
		}
		authOpts = append(authOpts, oidc.WithOrganization(org), oidc.WithInvitation(invitation))
		vctx.Organization = org
	}

	var grant oidc.Grant
	if opts.withResponseType.Has(oidc.ResponseTypeCode) {
		verifier, err := w.challenge()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create code verifier: %w", op, err)
		}
		if grant, err = oidc.NewPKCEGrant(w.provider, verifier, redirectURL, vctx, w.grantOpts...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		authOpts = append(authOpts, oidc.WithPKCE(verifier))
	} else {
		var err error
		if grant, err = oidc.NewImplicitGrant(opts.withResponseType, vctx, w.grantOpts...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	authURL, err := w.provider.AuthURL(state, nonce, authOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t, err := NewLoginTransaction(ctx, redirectURL, state, grant, WithUserAgent(w.userAgent), WithLogger(w.logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := w.launch(ctx, t, authURL); err != nil {
		return nil, err
	}
	return t, nil
}

// Login starts a login and waits for its credentials. The transaction is
// cancelled when ctx is done first.
func (w *WebAuth) Login(ctx context.Context, opt ...Option) (*oidc.Credentials, error) {
	t, err := w.Start(ctx, opt...)
	if err != nil {
		return nil, err
	}
	c, err := t.Result().Wait(ctx)
	if ctx.Err() != nil && !t.Result().Resolved() {
		t.Cancel()
		w.store.clearIf(t)
	}
	return c, err
}

// AuthorizeWithPAR presents the authorize url for requestURI, obtained by
// the caller's backend from the pushed authorization request endpoint. The
// transaction's Result delivers the authorization code.
//
// Supported options: WithState, WithRedirectURL
func (w *WebAuth) AuthorizeWithPAR(ctx context.Context, requestURI string, opt ...Option) (*PARCodeTransaction, error) {
	const op = "WebAuth.AuthorizeWithPAR"
	opts := getStartOpts(opt...)
	redirectURL := opts.withRedirectURL
	if redirectURL == "" {
		redirectURL = w.provider.Config().RedirectURL
	}
	authURL, err := w.provider.PARAuthorizeURL(requestURI)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t, err := NewPARCodeTransaction(redirectURL, WithState(opts.withState), WithUserAgent(w.userAgent), WithLogger(w.logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := w.launch(ctx, t, authURL); err != nil {
		return nil, err
	}
	return t, nil
}

// ClearSession presents the provider's logout url which redirects back to
// the redirect url.
//
// Supported options: WithFederated, WithRedirectURL
func (w *WebAuth) ClearSession(ctx context.Context, opt ...Option) (*ClearSessionTransaction, error) {
	const op = "WebAuth.ClearSession"
	opts := getStartOpts(opt...)
	redirectURL := opts.withRedirectURL
	if redirectURL == "" {
		redirectURL = w.provider.Config().RedirectURL
	}
	logoutURL, err := w.provider.LogoutURL(redirectURL, opts.withFederated)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t, err := NewClearSessionTransaction(redirectURL, WithUserAgent(w.userAgent), WithLogger(w.logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := w.launch(ctx, t, logoutURL); err != nil {
		return nil, err
	}
	return t, nil
}

// NativeAuth logs in with a third party authenticator and exchanges its
// token for the connection. The transaction is registered with the store so
// callbacks reach the authenticator.
//
// Supported options: WithParameters
func (w *WebAuth) NativeAuth(ctx context.Context, connection string, authenticator NativeAuthenticator, opt ...Option) (*NativeAuthTransaction, error) {
	const op = "WebAuth.NativeAuth"
	opts := getStartOpts(opt...)
	t, err := NewNativeAuthTransaction(ctx, connection, authenticator, w.provider, WithParameters(opts.withParams), WithLogger(w.logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	w.store.Store(t)
	t.Start()
	return t, nil
}

// parseInvitationURL reads the organization and invitation query
// parameters of an invitation url.
func parseInvitationURL(u string) (org, invitation string, err error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidInvitationURL, err)
	}
	q := parsed.Query()
	org, invitation = q.Get("organization"), q.Get("invitation")
	if org == "" || invitation == "" {
		return "", "", fmt.Errorf("%s is missing the organization or invitation parameter: %w", u, ErrInvalidInvitationURL)
	}
	return org, invitation, nil
}
