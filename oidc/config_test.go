// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/capauth/jwt"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	testCaPem := TestGenerateCA(t, []string{"localhost"})
	maxAge := 10 * time.Minute
	custom := Endpoints{
		AuthURL:  "https://login.example.com/auth",
		TokenURL: "https://login.example.com/token",
		JWKSURL:  "https://login.example.com/keys",
	}

	type args struct {
		issuer      string
		clientID    string
		redirectURL string
		opt         []Option
	}
	tests := []struct {
		name      string
		args      args
		want      *Config
		wantErr   bool
		wantIsErr error
	}{
		{
			name: "valid-with-all-valid-opts",
			args: args{
				issuer:      "https://YOUR_DOMAIN/",
				clientID:    "YOUR_CLIENT_ID",
				redirectURL: "com.example.app://YOUR_DOMAIN/callback",
				opt: []Option{
					WithScopes("openid", "offline_access"),
					WithAudience("https://api.example.com"),
					WithOrganization("org_123"),
					WithLeeway(30 * time.Second),
					WithMaxAge(maxAge),
					WithProviderCA(testCaPem),
				},
			},
			want: &Config{
				Issuer:       "https://YOUR_DOMAIN/",
				ClientID:     "YOUR_CLIENT_ID",
				RedirectURL:  "com.example.app://YOUR_DOMAIN/callback",
				Scopes:       []string{"openid", "offline_access"},
				Audience:     "https://api.example.com",
				Organization: "org_123",
				Leeway:       30 * time.Second,
				MaxAge:       &maxAge,
				ProviderCA:   testCaPem,
				Endpoints:    DefaultEndpoints("https://YOUR_DOMAIN/"),
			},
		},
		{
			name: "valid-defaults",
			args: args{
				issuer:      "https://YOUR_DOMAIN/",
				clientID:    "YOUR_CLIENT_ID",
				redirectURL: "http://127.0.0.1/callback",
			},
			want: &Config{
				Issuer:      "https://YOUR_DOMAIN/",
				ClientID:    "YOUR_CLIENT_ID",
				RedirectURL: "http://127.0.0.1/callback",
				Leeway:      jwt.DefaultLeeway,
				Endpoints:   DefaultEndpoints("https://YOUR_DOMAIN/"),
			},
		},
		{
			name: "custom-endpoints",
			args: args{
				issuer:      "https://YOUR_DOMAIN/",
				clientID:    "YOUR_CLIENT_ID",
				redirectURL: "http://127.0.0.1/callback",
				opt:         []Option{WithEndpoints(custom)},
			},
			want: &Config{
				Issuer:      "https://YOUR_DOMAIN/",
				ClientID:    "YOUR_CLIENT_ID",
				RedirectURL: "http://127.0.0.1/callback",
				Leeway:      jwt.DefaultLeeway,
				Endpoints:   custom,
			},
		},
		{
			name: "empty-issuer",
			args: args{
				clientID:    "YOUR_CLIENT_ID",
				redirectURL: "http://127.0.0.1/callback",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidIssuer,
		},
		{
			name: "issuer-with-query",
			args: args{
				issuer:      "https://YOUR_DOMAIN/?tenant=1",
				clientID:    "YOUR_CLIENT_ID",
				redirectURL: "http://127.0.0.1/callback",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidIssuer,
		},
		{
			name: "issuer-bad-scheme",
			args: args{
				issuer:      "ftp://YOUR_DOMAIN/",
				clientID:    "YOUR_CLIENT_ID",
				redirectURL: "http://127.0.0.1/callback",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidIssuer,
		},
		{
			name: "missing-client-id",
			args: args{
				issuer:      "https://YOUR_DOMAIN/",
				redirectURL: "http://127.0.0.1/callback",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "missing-redirect",
			args: args{
				issuer:   "https://YOUR_DOMAIN/",
				clientID: "YOUR_CLIENT_ID",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "negative-leeway",
			args: args{
				issuer:      "https://YOUR_DOMAIN/",
				clientID:    "YOUR_CLIENT_ID",
				redirectURL: "http://127.0.0.1/callback",
				opt:         []Option{WithLeeway(-time.Second)},
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.args.issuer, tt.args.clientID, tt.args.redirectURL, tt.args.opt...)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestConfig_Validate_nil(t *testing.T) {
	t.Parallel()
	var c *Config
	assert.ErrorIs(t, c.Validate(), ErrNilParameter)
}

func TestScopeString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		scopes []string
		want   string
	}{
		{name: "defaults", want: "openid profile email"},
		{name: "adds-openid", scopes: []string{"email", "offline_access"}, want: "openid email offline_access"},
		{name: "keeps-order", scopes: []string{"profile", "openid"}, want: "profile openid"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ScopeString(tt.scopes))
		})
	}
}

func TestConfig_HttpClient(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewConfig("https://YOUR_DOMAIN/", "YOUR_CLIENT_ID", "http://127.0.0.1/callback")
	require.NoError(err)

	client, err := c.HttpClient()
	require.NoError(err)
	assert.NotNil(client)

	c.ProviderCA = "not a pem"
	_, err = c.HttpClient()
	assert.ErrorIs(err, ErrInvalidCACert)
}

func TestConfig_ValidatorContext(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	maxAge := time.Minute
	c, err := NewConfig("https://YOUR_DOMAIN/", "YOUR_CLIENT_ID", "http://127.0.0.1/callback", WithMaxAge(maxAge), WithOrganization("org_1"))
	require.NoError(err)
	keys := jwt.StaticJWKS{Set: &jwt.JWKS{}}
	got := c.ValidatorContext(keys, "nonce")
	assert.Equal(&jwt.ValidatorContext{
		Issuer:       "https://YOUR_DOMAIN/",
		Audience:     "YOUR_CLIENT_ID",
		KeySet:       keys,
		Leeway:       jwt.DefaultLeeway,
		MaxAge:       &maxAge,
		Nonce:        "nonce",
		Organization: "org_1",
	}, got)
	assert.NoError(got.Validate())
}

func TestDiscover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := StartTestProvider(t)

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := tp.Config("http://127.0.0.1/callback", WithEndpoints(Endpoints{
			AuthURL:  "https://stale/authorize",
			TokenURL: "https://stale/token",
			JWKSURL:  "https://stale/jwks",
		}))
		require.NoError(Discover(ctx, c))
		want := DefaultEndpoints(tp.Issuer())
		want.SocialTokenURL = ""
		assert.Equal(want, c.Endpoints)
	})
	t.Run("issuer-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := tp.Config("http://127.0.0.1/callback")
		c.Issuer = tp.Addr() + "/other/"
		err := Discover(ctx, c)
		require.Error(err)
		assert.ErrorIs(err, ErrDiscoveryFailed)
	})
	t.Run("nil-config", func(t *testing.T) {
		assert.ErrorIs(t, Discover(ctx, nil), ErrNilParameter)
	})
}
