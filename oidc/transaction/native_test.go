// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/capauth/oidc"
)

type testAuthenticator struct {
	mu        sync.Mutex
	token     oidc.AccessToken
	err       error
	resumed   []string
	cancelled int
	block     chan struct{}
}

func (a *testAuthenticator) Login(ctx context.Context) (oidc.AccessToken, error) {
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return a.token, a.err
}

func (a *testAuthenticator) Resume(u string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resumed = append(a.resumed, u)
	return true
}

func (a *testAuthenticator) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelled++
}

type testExchanger struct {
	mu         sync.Mutex
	creds      *oidc.Credentials
	err        error
	token      oidc.AccessToken
	connection string
	params     map[string]string
}

func (e *testExchanger) LoginSocial(_ context.Context, at oidc.AccessToken, connection string, params map[string]string) (*oidc.Credentials, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.token, e.connection, e.params = at, connection, params
	return e.creds, e.err
}

func TestNativeAuthTransaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		auth := &testAuthenticator{token: "apple-token"}
		ex := &testExchanger{creds: &oidc.Credentials{AccessToken: "AT", TokenType: "bearer"}}
		params := map[string]string{"scope": "openid offline_access"}
		tx, err := NewNativeAuthTransaction(ctx, "apple", auth, ex, WithParameters(params))
		require.NoError(err)
		tx.Start()
		tx.Start()

		got, err := tx.Result().Wait(waitCtx(t))
		require.NoError(err)
		assert.Equal(oidc.AccessToken("AT"), got.AccessToken)
		assert.Equal(oidc.AccessToken("apple-token"), ex.token)
		assert.Equal("apple", ex.connection)
		assert.Equal(params, ex.params)
	})

	t.Run("login-failed", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		loginErr := errors.New("no account")
		tx, err := NewNativeAuthTransaction(ctx, "apple", &testAuthenticator{err: loginErr}, &testExchanger{})
		require.NoError(err)
		tx.Start()
		_, err = tx.Result().Wait(waitCtx(t))
		assert.ErrorIs(err, loginErr)
	})

	t.Run("resume-and-cancel", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		auth := &testAuthenticator{token: "apple-token", block: make(chan struct{})}
		tx, err := NewNativeAuthTransaction(ctx, "apple", auth, &testExchanger{})
		require.NoError(err)
		tx.Start()

		assert.True(tx.Resume("com.example.app://callback"))
		tx.Cancel()
		tx.Cancel()
		assert.ErrorIs(tx.Err(), ErrUserCancelled)
		assert.False(tx.Resume("com.example.app://callback"))

		auth.mu.Lock()
		defer auth.mu.Unlock()
		assert.Equal(1, auth.cancelled)
		assert.Equal([]string{"com.example.app://callback"}, auth.resumed)
	})

	t.Run("invalid-parameters", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)
		_, err := NewNativeAuthTransaction(ctx, "", &testAuthenticator{}, &testExchanger{})
		assert.ErrorIs(err, ErrInvalidParameter)
		_, err = NewNativeAuthTransaction(ctx, "apple", nil, &testExchanger{})
		assert.ErrorIs(err, ErrNilParameter)
		_, err = NewNativeAuthTransaction(ctx, "apple", &testAuthenticator{}, nil)
		assert.ErrorIs(err, ErrNilParameter)
	})
}
