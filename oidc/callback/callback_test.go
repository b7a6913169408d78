// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/capauth/jwt"
	"github.com/hashicorp/capauth/oidc"
	"github.com/hashicorp/capauth/oidc/transaction"
)

type testGrant struct {
	creds *oidc.Credentials
	err   error
}

func (g *testGrant) Credentials(_ context.Context, _ map[string]string) (*oidc.Credentials, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.creds, nil
}

func testSuccessFn(state string, w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("login successful: " + state))
}

func testFailFn(state string, respErr *oidc.AuthenticationError, e error, w http.ResponseWriter, _ *http.Request) {
	switch {
	case respErr != nil:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(respErr.Code()))
	case errors.Is(e, oidc.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(e.Error()))
	default:
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(e.Error()))
	}
}

func testServer(t *testing.T, s *transaction.Store) *httptest.Server {
	t.Helper()
	h, err := Handler(s, testSuccessFn, testFailFn)
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testLogin(t *testing.T, s *transaction.Store, redirectURL string, g oidc.Grant) *transaction.LoginTransaction {
	t.Helper()
	tx, err := transaction.NewLoginTransaction(context.Background(), redirectURL, "abc", g)
	require.NoError(t, err)
	s.Store(tx)
	return tx
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHandler(t *testing.T) {
	t.Parallel()
	s := transaction.NewStore()
	tests := []struct {
		name      string
		s         *transaction.Store
		sFn       SuccessResponseFunc
		eFn       ErrorResponseFunc
		wantIsErr error
	}{
		{name: "valid", s: s, sFn: testSuccessFn, eFn: testFailFn},
		{name: "nil-store", sFn: testSuccessFn, eFn: testFailFn, wantIsErr: oidc.ErrInvalidParameter},
		{name: "nil-success-fn", s: s, eFn: testFailFn, wantIsErr: oidc.ErrInvalidParameter},
		{name: "nil-error-fn", s: s, sFn: testSuccessFn, wantIsErr: oidc.ErrInvalidParameter},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := Handler(tt.s, tt.sFn, tt.eFn)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Nil(got)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.NotNil(got)
		})
	}
}

func TestHandler_callbacks(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		s := transaction.NewStore()
		srv := testServer(t, s)
		tx := testLogin(t, s, srv.URL+"/callback", &testGrant{creds: &oidc.Credentials{AccessToken: "AT", TokenType: "bearer"}})

		resp, err := srv.Client().Get(srv.URL + "/callback?code=123456&state=abc")
		require.NoError(err)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Equal("login successful: abc", readBody(t, resp))

		got, err := tx.Result().Wait(context.Background())
		require.NoError(err)
		assert.Equal(oidc.AccessToken("AT"), got.AccessToken)
		assert.Nil(s.Current())
	})

	t.Run("form-post", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		s := transaction.NewStore()
		srv := testServer(t, s)
		tx := testLogin(t, s, srv.URL+"/callback", &testGrant{creds: &oidc.Credentials{AccessToken: "AT", TokenType: "bearer"}})

		resp, err := srv.Client().PostForm(srv.URL+"/callback", url.Values{"code": {"123456"}, "state": {"abc"}})
		require.NoError(err)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Equal("login successful: abc", readBody(t, resp))
		assert.NoError(tx.Err())
	})

	t.Run("implicit-form-post", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		s := transaction.NewStore()
		srv := testServer(t, s)
		var validated string
		g, err := oidc.NewImplicitGrant(
			oidc.ResponseTypeIDToken|oidc.ResponseTypeToken,
			&jwt.ValidatorContext{},
			oidc.WithIDTokenValidator(func(_ context.Context, idToken string, _ *jwt.ValidatorContext) error {
				validated = idToken
				return nil
			}),
		)
		require.NoError(err)
		tx := testLogin(t, s, srv.URL+"/callback", g)

		// The browser drops the fragment of a GET, leaving nothing to resume.
		resp, err := srv.Client().Get(srv.URL + "/callback")
		require.NoError(err)
		assert.Equal(http.StatusNotFound, resp.StatusCode)
		_ = readBody(t, resp)
		assert.Same(tx, s.Current())

		resp, err = srv.Client().PostForm(srv.URL+"/callback", url.Values{
			"access_token": {"AT"},
			"token_type":   {"bearer"},
			"id_token":     {"h.p.s"},
			"expires_in":   {"3600"},
			"state":        {"abc"},
		})
		require.NoError(err)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Equal("login successful: abc", readBody(t, resp))

		got, err := tx.Result().Wait(context.Background())
		require.NoError(err)
		assert.Equal(oidc.AccessToken("AT"), got.AccessToken)
		assert.Equal(oidc.IDToken("h.p.s"), got.IDToken)
		assert.Equal("h.p.s", validated)
		assert.Nil(s.Current())
	})

	t.Run("provider-error", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		s := transaction.NewStore()
		srv := testServer(t, s)
		tx := testLogin(t, s, srv.URL+"/callback", &testGrant{})

		resp, err := srv.Client().Get(srv.URL + "/callback?error=access_denied&error_description=denied&state=abc")
		require.NoError(err)
		assert.Equal(http.StatusUnauthorized, resp.StatusCode)
		assert.Equal("access_denied", readBody(t, resp))
		assert.ErrorIs(tx.Err(), transaction.ErrWebAuth)
	})

	t.Run("grant-error", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		s := transaction.NewStore()
		srv := testServer(t, s)
		tx := testLogin(t, s, srv.URL+"/callback", &testGrant{err: fmt.Errorf("exchange: %w", oidc.ErrNetwork)})

		resp, err := srv.Client().Get(srv.URL + "/callback?code=123456&state=abc")
		require.NoError(err)
		assert.Equal(http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(readBody(t, resp), "exchange")
		assert.ErrorIs(tx.Err(), oidc.ErrNetwork)
	})

	t.Run("no-transaction", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		srv := testServer(t, transaction.NewStore())

		resp, err := srv.Client().Get(srv.URL + "/callback?code=123456&state=abc")
		require.NoError(err)
		assert.Equal(http.StatusNotFound, resp.StatusCode)
		assert.Contains(readBody(t, resp), "no authentication attempt is waiting")
	})

	t.Run("state-mismatch", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		s := transaction.NewStore()
		srv := testServer(t, s)
		tx := testLogin(t, s, srv.URL+"/callback", &testGrant{})

		resp, err := srv.Client().Get(srv.URL + "/callback?code=123456&state=not-abc")
		require.NoError(err)
		assert.Equal(http.StatusNotFound, resp.StatusCode)
		assert.True(strings.Contains(readBody(t, resp), "current authentication attempt"))
		assert.Same(tx, s.Current())

		select {
		case <-tx.Done():
			t.Fatal("transaction should still be pending")
		default:
		}
		tx.Cancel()
	})
}
