// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/capauth/jwt"
	"github.com/hashicorp/capauth/oidc"
)

// Authenticator is the token endpoint collaborator of a Manager.
// *oidc.Provider implements it.
type Authenticator interface {
	Refresh(ctx context.Context, refreshToken oidc.RefreshToken, scope string, params map[string]string) (*oidc.Credentials, error)
	Revoke(ctx context.Context, refreshToken oidc.RefreshToken, params map[string]string) error
	SSOExchange(ctx context.Context, refreshToken oidc.RefreshToken, params map[string]string) (*oidc.SSOCredentials, error)
}

var _ Authenticator = (*oidc.Provider)(nil)

type biometrics struct {
	prompt BiometricPrompt
	title  string
	policy BiometricPolicy
}

// Manager persists credentials and hands them out, refreshing them when
// they expire. Access can be gated behind a BiometricPrompt with
// EnableBiometrics.
//
// Concurrent calls to Credentials are not serialized: calls made while the
// stored access token is expired may each refresh, and the last one to
// finish is the one stored.
type Manager struct {
	client  Authenticator
	storage Storage
	key     string
	vctx    *jwt.ValidatorContext
	now     func() time.Time
	logger  hclog.Logger
	session *BiometricSession

	mu         sync.RWMutex
	biometrics *biometrics
}

// NewManager creates a Manager which stores credentials in storage and
// refreshes them with client.
//
// Supported options: WithStorageKey, WithNow, WithLogger,
// WithIDTokenValidation, WithBiometricSession
func NewManager(client Authenticator, storage Storage, opt ...Option) (*Manager, error) {
	const op = "credentials.NewManager"
	switch {
	case client == nil:
		return nil, fmt.Errorf("%s: authenticator is nil: %w", op, ErrNilParameter)
	case storage == nil:
		return nil, fmt.Errorf("%s: storage is nil: %w", op, ErrNilParameter)
	}
	opts := getManagerOpts(opt...)
	if opts.withIDTokenValidation != nil {
		if err := opts.withIDTokenValidation.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
		}
	}
	return &Manager{
		client:  client,
		storage: storage,
		key:     opts.withStorageKey,
		vctx:    opts.withIDTokenValidation,
		now:     opts.withNow,
		logger:  opts.withLogger,
		session: opts.withBiometricSession,
	}, nil
}

// EnableBiometrics gates Credentials behind prompt. title is shown by the
// prompt and policy decides when a previous authentication is reused.
func (m *Manager) EnableBiometrics(prompt BiometricPrompt, title string, policy BiometricPolicy) error {
	const op = "Manager.EnableBiometrics"
	if prompt == nil {
		return fmt.Errorf("%s: biometric prompt is nil: %w", op, ErrNilParameter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.biometrics = &biometrics{prompt: prompt, title: title, policy: policy}
	return nil
}

// IsBiometricSessionValid reports whether Credentials can skip the
// biometric prompt. It is false when biometrics aren't enabled.
func (m *Manager) IsBiometricSessionValid() bool {
	m.mu.RLock()
	b := m.biometrics
	m.mu.RUnlock()
	if b == nil {
		return false
	}
	return m.session.Valid(b.policy, m.now())
}

// ClearBiometricSession forces the next Credentials call to prompt. The
// session is shared with every Manager using the same BiometricSession.
func (m *Manager) ClearBiometricSession() {
	m.session.Clear()
}

// HasValid reports whether Credentials can return an access token which
// is valid for minTTL, either from storage or with a refresh.
func (m *Manager) HasValid(minTTL time.Duration) bool {
	c, err := m.load()
	if err != nil {
		return false
	}
	return c.RefreshToken != "" || !WillExpire(c, minTTL, m.now())
}

// Credentials returns the stored credentials, refreshing them first when
// the access token is expired, expires within the WithMinTTL duration or
// the WithScope scope requests scopes the stored credentials weren't
// granted. A failed refresh leaves the stored credentials unchanged.
//
// Supported options: WithScope, WithMinTTL, WithParameters
func (m *Manager) Credentials(ctx context.Context, opt ...Option) (*oidc.Credentials, error) {
	const op = "Manager.Credentials"
	opts := getCredentialsOpts(opt...)
	c, err := m.load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := m.authenticate(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := m.now()
	expired := HasExpired(c, now)
	willExpire := WillExpire(c, opts.withMinTTL, now)
	scopeChanged := HasScopeChanged(c, opts.withScope)
	if !expired && !willExpire && !scopeChanged {
		return c, nil
	}
	m.logger.Debug("credentials need a refresh", "expired", expired, "will_expire", willExpire, "scope_changed", scopeChanged)
	if c.RefreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoRefreshToken)
	}
	renewed, err := m.refresh(ctx, c, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return renewed, nil
}

// Renew refreshes the stored credentials whether or not they are expired.
//
// Supported options: WithScope, WithParameters
func (m *Manager) Renew(ctx context.Context, opt ...Option) (*oidc.Credentials, error) {
	const op = "Manager.Renew"
	opts := getCredentialsOpts(opt...)
	opts.withMinTTL = 0
	c, err := m.load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.RefreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoRefreshToken)
	}
	renewed, err := m.refresh(ctx, c, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return renewed, nil
}

// SSOCredentials exchanges the stored refresh token for a session transfer
// token. A rotated refresh token is stored.
//
// Supported options: WithParameters
func (m *Manager) SSOCredentials(ctx context.Context, opt ...Option) (*oidc.SSOCredentials, error) {
	const op = "Manager.SSOCredentials"
	opts := getCredentialsOpts(opt...)
	c, err := m.load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.RefreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoRefreshToken)
	}
	sso, err := m.client.SSOExchange(ctx, c.RefreshToken, opts.withParameters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrExchangeFailed, err)
	}
	if sso.RefreshToken != "" {
		updated := *c
		updated.RefreshToken = sso.RefreshToken
		if sso.IDToken != "" {
			updated.IDToken = sso.IDToken
		}
		if err := m.Store(&updated); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return sso, nil
}

// Revoke revokes the stored refresh token and clears the stored
// credentials. Without a refresh token there is nothing to revoke and the
// credentials are just cleared. When revocation fails nothing is cleared.
//
// Supported options: WithParameters
func (m *Manager) Revoke(ctx context.Context, opt ...Option) error {
	const op = "Manager.Revoke"
	opts := getCredentialsOpts(opt...)
	c, err := m.load()
	if err == nil && c.RefreshToken != "" {
		if err := m.client.Revoke(ctx, c.RefreshToken, opts.withParameters); err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrRevokeFailed, err)
		}
	}
	if err := m.Clear(); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Store c, replacing any stored credentials.
func (m *Manager) Store(c *oidc.Credentials) error {
	const op = "Manager.Store"
	b, err := oidc.EncodeCredentials(c)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreFailed, err)
	}
	if err := m.storage.Set(m.key, b); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreFailed, err)
	}
	return nil
}

// Clear deletes the stored credentials and the biometric session which
// gated them. It returns an error wrapping ErrNotFound when nothing was
// stored.
func (m *Manager) Clear() error {
	const op = "Manager.Clear"
	m.session.Clear()
	if err := m.storage.Delete(m.key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// User decodes the claims of the stored id_token into claims. The id_token
// isn't validated again.
func (m *Manager) User(claims interface{}) error {
	const op = "Manager.User"
	c, err := m.load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if c.IDToken == "" {
		return fmt.Errorf("%s: %w", op, oidc.ErrMissingIdToken)
	}
	if err := c.IDToken.Claims(claims); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Manager) load() (*oidc.Credentials, error) {
	const op = "Manager.load"
	b, err := m.storage.Get(m.key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNoCredentials, err)
	}
	c, err := oidc.DecodeCredentials(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNoCredentials, err)
	}
	return c, nil
}

// authenticate prompts for biometrics when they are enabled and the session
// isn't valid.
func (m *Manager) authenticate(ctx context.Context) error {
	const op = "Manager.authenticate"
	m.mu.RLock()
	b := m.biometrics
	m.mu.RUnlock()
	if b == nil || m.session.Valid(b.policy, m.now()) {
		return nil
	}
	m.logger.Debug("prompting for biometric authentication", "policy", b.policy.String())
	if err := b.prompt.Available(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrBiometricsFailed, err)
	}
	if err := b.prompt.Authenticate(ctx, b.title); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrBiometricsFailed, err)
	}
	if b.policy.kind != policyAlways {
		m.session.Record(m.now())
	}
	return nil
}

// refresh c and store the result. Values the response omits are kept from
// c.
func (m *Manager) refresh(ctx context.Context, c *oidc.Credentials, opts credentialsOptions) (*oidc.Credentials, error) {
	const op = "Manager.refresh"
	r, err := m.client.Refresh(ctx, c.RefreshToken, opts.withScope, opts.withParameters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefreshFailed, err)
	}
	if r.IDToken != "" && m.vctx != nil {
		if err := m.validateIDToken(ctx, r.IDToken); err != nil {
			return nil, fmt.Errorf("%s: %w: %w: %w", op, ErrRefreshFailed, oidc.ErrIDTokenValidationFailed, err)
		}
	}
	renewed := &oidc.Credentials{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		Scope:        r.Scope,
		RecoveryCode: r.RecoveryCode,
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = c.RefreshToken
	}
	if renewed.IDToken == "" {
		renewed.IDToken = c.IDToken
	}
	if renewed.Scope == "" {
		renewed.Scope = c.Scope
	}

	now := m.now()
	if opts.withMinTTL > 0 && WillExpire(renewed, opts.withMinTTL, now) {
		return nil, &LargeMinTTLError{MinTTL: opts.withMinTTL, Lifetime: renewed.Lifetime(now)}
	}
	if err := m.Store(renewed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.logger.Debug("stored refreshed credentials", "expires_at", renewed.ExpiresAt, "rotated", r.RefreshToken != "")
	return renewed, nil
}

func (m *Manager) validateIDToken(ctx context.Context, idToken oidc.IDToken) error {
	vctx := *m.vctx
	vctx.Nonce = ""
	vctx.MaxAge = nil
	return jwt.ValidateIDToken(ctx, string(idToken), &vctx,
		jwt.WithSkipAuthorizedParty(),
		jwt.WithNow(m.now),
		jwt.WithLogger(m.logger),
	)
}
