// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

const testRedirectURL = "https://127.0.0.1/callback"

func testProvider(t *testing.T, tp *TestProvider, opt ...Option) *Provider {
	t.Helper()
	p, err := NewProvider(tp.Config(testRedirectURL), opt...)
	require.NoError(t, err)
	return p
}

func TestNewProvider(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	_, err := NewProvider(nil)
	assert.ErrorIs(err, ErrNilParameter)

	_, err = NewProvider(&Config{})
	assert.ErrorIs(err, ErrInvalidParameter)

	c, err := NewConfig("https://YOUR_DOMAIN/", "YOUR_CLIENT_ID", testRedirectURL)
	require.NoError(t, err)
	c.ProviderCA = "not a pem"
	_, err = NewProvider(c)
	assert.ErrorIs(err, ErrInvalidCACert)
}

func TestProvider_AuthURL(t *testing.T) {
	t.Parallel()
	maxAge := 5 * time.Minute
	c, err := NewConfig("https://YOUR_DOMAIN/", "YOUR_CLIENT_ID", testRedirectURL, WithAudience("https://api"))
	require.NoError(t, err)
	p, err := NewProvider(c)
	require.NoError(t, err)
	v, err := NewCodeVerifier()
	require.NoError(t, err)

	tests := []struct {
		name       string
		state      string
		nonce      string
		opt        []Option
		want       map[string]string
		wantAbsent []string
		wantIsErr  error
	}{
		{
			name:  "code-with-pkce",
			state: "state",
			nonce: "nonce",
			opt:   []Option{WithPKCE(v)},
			want: map[string]string{
				"response_type":         "code",
				"client_id":             "YOUR_CLIENT_ID",
				"redirect_uri":          testRedirectURL,
				"scope":                 "openid profile email",
				"state":                 "state",
				"nonce":                 "nonce",
				"audience":              "https://api",
				"code_challenge":        v.Challenge(),
				"code_challenge_method": "S256",
			},
			wantAbsent: []string{"organization", "max_age", "connection"},
		},
		{
			name:  "all-options",
			state: "state",
			nonce: "nonce",
			opt: []Option{
				WithResponseType(ResponseTypeIDToken | ResponseTypeToken),
				WithScopes("email"),
				WithAudience("https://other"),
				WithOrganization("org_1"),
				WithInvitation("ticket"),
				WithConnection("github"),
				WithMaxAge(maxAge),
				WithUILocales(language.French, language.AmericanEnglish),
				WithParameters(map[string]string{"prompt": "login", "state": "ignored"}),
				WithRedirectURL("https://other/callback"),
			},
			want: map[string]string{
				"response_type": "token id_token",
				"scope":         "openid email",
				"audience":      "https://other",
				"organization":  "org_1",
				"invitation":    "ticket",
				"connection":    "github",
				"max_age":       "300",
				"ui_locales":    "fr en-US",
				"prompt":        "login",
				"state":         "state",
				"redirect_uri":  "https://other/callback",
			},
			wantAbsent: []string{"code_challenge"},
		},
		{
			name:      "empty-state",
			nonce:     "nonce",
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "state-equals-nonce",
			state:     "same",
			nonce:     "same",
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "id-token-without-nonce",
			state:     "state",
			opt:       []Option{WithResponseType(ResponseTypeIDToken)},
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := p.AuthURL(tt.state, tt.nonce, tt.opt...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			u, err := url.Parse(got)
			require.NoError(err)
			assert.Equal("https://YOUR_DOMAIN/authorize", u.Scheme+"://"+u.Host+u.Path)
			q := u.Query()
			for k, v := range tt.want {
				assert.Equalf(v, q.Get(k), "parameter %s", k)
			}
			for _, k := range tt.wantAbsent {
				assert.Falsef(q.Has(k), "parameter %s", k)
			}
		})
	}
}

func TestProvider_LogoutURL(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewConfig("https://YOUR_DOMAIN/", "YOUR_CLIENT_ID", testRedirectURL)
	require.NoError(err)
	p, err := NewProvider(c)
	require.NoError(err)

	got, err := p.LogoutURL("https://app/logged-out", false)
	require.NoError(err)
	u, err := url.Parse(got)
	require.NoError(err)
	assert.Equal("/v2/logout", u.Path)
	assert.Equal("YOUR_CLIENT_ID", u.Query().Get("client_id"))
	assert.Equal("https://app/logged-out", u.Query().Get("returnTo"))
	assert.False(u.Query().Has("federated"))

	got, err = p.LogoutURL("https://app/logged-out", true)
	require.NoError(err)
	u, err = url.Parse(got)
	require.NoError(err)
	assert.True(u.Query().Has("federated"))

	got, err = p.PARAuthorizeURL("urn:ietf:params:oauth:request_uri:abc")
	require.NoError(err)
	u, err = url.Parse(got)
	require.NoError(err)
	assert.Equal("/authorize", u.Path)
	assert.Equal("urn:ietf:params:oauth:request_uri:abc", u.Query().Get("request_uri"))
	assert.Equal("YOUR_CLIENT_ID", u.Query().Get("client_id"))

	_, err = p.PARAuthorizeURL("")
	assert.ErrorIs(err, ErrInvalidParameter)
}

func TestProvider_Exchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedAuthCode("123456")
		tp.SetExpectedAuthNonce("nonce")
		tp.SetExpectedRefreshToken("rt-1")
		v, err := NewCodeVerifier()
		require.NoError(err)
		tp.SetExpectedChallenge(v.Challenge())

		p := testProvider(t, tp, WithNow(func() time.Time { return now }))
		got, err := p.Exchange(ctx, "123456", v.Verifier(), "")
		require.NoError(err)
		assert.NotEmpty(got.AccessToken)
		assert.Equal("Bearer", got.TokenType)
		assert.Equal(RefreshToken("rt-1"), got.RefreshToken)
		assert.NotEmpty(got.IDToken)
		assert.Equal("openid profile email", got.Scope)
		assert.Equal(now.Add(time.Hour), got.ExpiresAt)

		reqs := tp.TokenRequests()
		require.Len(reqs, 1)
		assert.Equal("authorization_code", reqs[0].Get("grant_type"))
		assert.Equal(testRedirectURL, reqs[0].Get("redirect_uri"))
		assert.Equal(tp.ClientID(), reqs[0].Get("client_id"))
		assert.Equal(v.Verifier(), reqs[0].Get("code_verifier"))
	})
	t.Run("missing-expires-in", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedAuthCode("123456")
		tp.OmitExpiresIn()
		p := testProvider(t, tp, WithNow(func() time.Time { return now }))
		got, err := p.Exchange(ctx, "123456", "", "")
		require.NoError(err)
		assert.Equal(now, got.ExpiresAt)
	})
	t.Run("wrong-verifier", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedAuthCode("123456")
		tp.SetExpectedChallenge("not-the-challenge")
		p := testProvider(t, tp)
		_, err := p.Exchange(ctx, "123456", "verifier", "")
		require.Error(err)
		var authErr *AuthenticationError
		require.True(errors.As(err, &authErr))
		assert.Equal(http.StatusForbidden, authErr.StatusCode)
		assert.Equal("invalid_grant", authErr.Code())
		assert.ErrorIs(err, ErrAuthentication)
	})
	t.Run("network-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p := testProvider(t, tp)
		tp.Stop()
		_, err := p.Exchange(ctx, "123456", "", "")
		require.Error(err)
		assert.ErrorIs(err, ErrNetwork)
		var authErr *AuthenticationError
		require.True(errors.As(err, &authErr))
		assert.True(authErr.IsNetworkError())
	})
	t.Run("empty-code", func(t *testing.T) {
		tp := StartTestProvider(t)
		_, err := testProvider(t, tp).Exchange(ctx, "", "", "")
		assert.ErrorIs(t, err, ErrInvalidParameter)
		assert.Empty(t, tp.TokenRequests())
	})
}

func TestProvider_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	t.Run("without-rotation", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedRefreshToken("rt-1")
		p := testProvider(t, tp, WithNow(func() time.Time { return now }))
		got, err := p.Refresh(ctx, "rt-1", "openid offline_access", map[string]string{"audience": "https://api"})
		require.NoError(err)
		assert.Empty(got.RefreshToken)
		assert.Equal("openid offline_access", got.Scope)
		assert.Equal(now.Add(time.Hour), got.ExpiresAt)

		reqs := tp.TokenRequests()
		require.Len(reqs, 1)
		assert.Equal("refresh_token", reqs[0].Get("grant_type"))
		assert.Equal("rt-1", reqs[0].Get("refresh_token"))
		assert.Equal("https://api", reqs[0].Get("audience"))
	})
	t.Run("with-rotation", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedRefreshToken("rt-1")
		tp.SetRotateRefreshToken(true)
		got, err := testProvider(t, tp).Refresh(ctx, "rt-1", "", nil)
		require.NoError(err)
		assert.NotEmpty(got.RefreshToken)
		assert.NotEqual(RefreshToken("rt-1"), got.RefreshToken)
		assert.False(tp.TokenRequests()[0].Has("scope"))
	})
	t.Run("rejected", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedRefreshToken("rt-1")
		_, err := testProvider(t, tp).Refresh(ctx, "rt-2", "", nil)
		require.Error(err)
		var authErr *AuthenticationError
		require.True(errors.As(err, &authErr))
		assert.True(authErr.IsRefreshTokenDeleted())
	})
}

func TestProvider_Revoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p := testProvider(t, tp)

	require.NoError(p.Revoke(ctx, "rt-1", nil))
	assert.Equal([]string{"rt-1"}, tp.RevokedTokens())

	assert.ErrorIs(p.Revoke(ctx, "", nil), ErrInvalidParameter)

	tp.SetTokenError(http.StatusBadRequest, map[string]interface{}{"error": "invalid_request", "error_description": "nope"})
	err := p.Revoke(ctx, "rt-2", nil)
	require.Error(err)
	var authErr *AuthenticationError
	require.True(errors.As(err, &authErr))
	assert.Equal("nope", authErr.Description())
	assert.Equal([]string{"rt-1"}, tp.RevokedTokens())
}

func TestProvider_SSOExchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	tp.SetExpectedRefreshToken("rt-1")
	p := testProvider(t, tp, WithNow(func() time.Time { return now }))

	got, err := p.SSOExchange(ctx, "rt-1", nil)
	require.NoError(err)
	assert.NotEmpty(got.SessionTransferToken)
	assert.Equal(TokenTypeSessionTransfer, got.IssuedTokenType)
	assert.Equal(now.Add(time.Minute), got.ExpiresAt)
	assert.NotEmpty(got.IDToken)
	assert.Empty(got.RefreshToken)

	reqs := tp.TokenRequests()
	require.Len(reqs, 1)
	assert.Equal(TokenTypeRefreshToken, reqs[0].Get("subject_token_type"))
	assert.Equal(TokenTypeSessionTransfer, reqs[0].Get("requested_token_type"))

	_, err = p.SSOExchange(ctx, "rt-2", nil)
	assert.ErrorIs(err, ErrAuthentication)
}

func TestProvider_LoginSocial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	tp.SetSocialToken("apple-token", "apple")
	p := testProvider(t, tp)

	got, err := p.LoginSocial(ctx, "apple-token", "apple", nil)
	require.NoError(err)
	assert.NotEmpty(got.AccessToken)

	_, err = p.LoginSocial(ctx, "apple-token", "google", nil)
	assert.ErrorIs(err, ErrAuthentication)

	_, err = p.LoginSocial(ctx, "", "apple", nil)
	assert.ErrorIs(err, ErrInvalidParameter)
}

func TestProvider_KeySet(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p := testProvider(t, tp)
	set, err := p.KeySet().FetchJWKS(context.Background())
	require.NoError(err)
	_, kid := tp.SigningKey()
	_, ok := set.Key(kid)
	assert.True(ok)

	vctx := p.ValidatorContext("nonce")
	assert.Equal(tp.Issuer(), vctx.Issuer)
	assert.Equal(tp.ClientID(), vctx.Audience)
	assert.Equal("nonce", vctx.Nonce)
}
