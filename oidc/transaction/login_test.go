// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/capauth/jwt"
	"github.com/hashicorp/capauth/oidc"
)

func TestNewLoginTransaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := &testGrant{}
	tests := []struct {
		name        string
		redirectURL string
		state       string
		grant       oidc.Grant
		wantIsErr   error
	}{
		{name: "valid", redirectURL: testRedirectURL, state: "abc", grant: g},
		{name: "missing-redirect", state: "abc", grant: g, wantIsErr: ErrInvalidParameter},
		{name: "missing-state", redirectURL: testRedirectURL, grant: g, wantIsErr: ErrInvalidParameter},
		{name: "nil-grant", redirectURL: testRedirectURL, state: "abc", wantIsErr: ErrNilParameter},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewLoginTransaction(ctx, tt.redirectURL, tt.state, tt.grant)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.state, got.State())
		})
	}
}

func TestLoginTransaction_Resume(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		g := &testGrant{creds: &oidc.Credentials{AccessToken: "AT", TokenType: "bearer"}}
		ua := &testUserAgent{}
		tx, err := NewLoginTransaction(context.Background(), testRedirectURL, "abc", g, WithUserAgent(ua))
		require.NoError(err)

		assert.True(tx.Resume(testRedirectURL + "?code=123456&state=abc"))
		got, err := tx.Result().Wait(waitCtx(t))
		require.NoError(err)
		assert.Equal(oidc.AccessToken("AT"), got.AccessToken)
		assert.Equal([]map[string]string{{"code": "123456", "state": "abc"}}, g.items)
		assert.Equal(1, ua.finishCount())
		assert.NoError(tx.Err())

		assert.False(tx.Resume(testRedirectURL + "?code=123456&state=abc"))
		assert.Equal(1, g.calls())
	})

	t.Run("error-param", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		g := &testGrant{}
		tx, err := NewLoginTransaction(context.Background(), testRedirectURL, "abc", g)
		require.NoError(err)

		assert.True(tx.Resume(testRedirectURL + "?error=access_denied&error_description=User+cancelled&state=abc"))
		_, err = tx.Result().Wait(waitCtx(t))
		require.Error(err)
		var webErr *WebAuthError
		require.True(errors.As(err, &webErr))
		assert.Equal(Other, webErr.Code)
		authErr, ok := webErr.AuthenticationError()
		require.True(ok)
		assert.Equal("User cancelled", authErr.Description())
		assert.True(authErr.IsAccessDenied())
		assert.Equal(0, g.calls())
	})

	t.Run("not-ours", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		g := &testGrant{creds: &oidc.Credentials{AccessToken: "AT", TokenType: "bearer"}}
		tx, err := NewLoginTransaction(context.Background(), testRedirectURL, "abc", g)
		require.NoError(err)

		for _, u := range []string{
			"https://127.0.0.1/other?code=123456&state=abc",
			testRedirectURL + "?code=123456&state=xyz",
			testRedirectURL + "?code=123456",
			testRedirectURL + "?error=access_denied",
			"%%",
		} {
			assert.Falsef(tx.Resume(u), "resumed with %s", u)
		}
		assert.False(tx.Result().Resolved())
		assert.Equal(0, g.calls())

		assert.True(tx.Resume(testRedirectURL + "#code=123456&state=abc"))
		_, err = tx.Result().Wait(waitCtx(t))
		require.NoError(err)
	})

	t.Run("grant-errors", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			err      error
			wantCode WebAuthErrorCode
		}{
			{err: fmt.Errorf("op: %w", oidc.ErrNoAuthorizationCode), wantCode: NoAuthorizationCode},
			{err: fmt.Errorf("op: %w", oidc.ErrPKCENotAllowed), wantCode: PKCENotAllowed},
			{err: fmt.Errorf("op: %w: %w", oidc.ErrIDTokenValidationFailed, jwt.ErrMismatchedNonce), wantCode: IDTokenValidationFailed},
			{err: oidc.NewNetworkError(errors.New("refused")), wantCode: Other},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.wantCode.String(), func(t *testing.T) {
				t.Parallel()
				assert, require := assert.New(t), require.New(t)
				tx, err := NewLoginTransaction(context.Background(), testRedirectURL, "abc", &testGrant{err: tt.err})
				require.NoError(err)
				assert.True(tx.Resume(testRedirectURL + "?state=abc"))
				_, err = tx.Result().Wait(waitCtx(t))
				var webErr *WebAuthError
				require.True(errors.As(err, &webErr))
				assert.Equal(tt.wantCode, webErr.Code)
				assert.ErrorIs(err, tt.err)
				assert.ErrorIs(err, ErrWebAuth)
			})
		}
	})
}

func TestLoginTransaction_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		ua := &testUserAgent{}
		tx, err := NewLoginTransaction(context.Background(), testRedirectURL, "abc", &testGrant{}, WithUserAgent(ua))
		require.NoError(err)

		tx.Cancel()
		tx.Cancel()
		assert.Equal(1, ua.finishCount())
		_, err = tx.Result().Wait(waitCtx(t))
		assert.ErrorIs(err, ErrUserCancelled)
		var webErr *WebAuthError
		require.True(errors.As(err, &webErr))
		assert.Equal(UserCancelled, webErr.Code)

		assert.False(tx.Resume(testRedirectURL + "?code=123456&state=abc"))
		assert.Equal(1, ua.finishCount())
	})

	t.Run("in-flight-grant", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		g := &testGrant{creds: &oidc.Credentials{AccessToken: "AT"}, block: make(chan struct{})}
		tx, err := NewLoginTransaction(context.Background(), testRedirectURL, "abc", g)
		require.NoError(err)

		assert.True(tx.Resume(testRedirectURL + "?code=123456&state=abc"))
		tx.Cancel()
		got, err := tx.Result().Wait(waitCtx(t))
		assert.Nil(got)
		assert.ErrorIs(err, ErrUserCancelled)
		close(g.block)
	})
}
