// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/capauth/oidc"
)

// NativeAuthenticator logs the user in with a third party identity provider
// SDK and returns the access token it issued.
type NativeAuthenticator interface {
	Login(ctx context.Context) (oidc.AccessToken, error)

	// Resume hands a callback url to the third party SDK, reporting
	// whether it was consumed.
	Resume(u string) bool

	// Cancel aborts a running Login.
	Cancel()
}

// SocialTokenExchanger exchanges a third party access token for
// credentials. oidc.Provider implements it.
type SocialTokenExchanger interface {
	LoginSocial(ctx context.Context, accessToken oidc.AccessToken, connection string, params map[string]string) (*oidc.Credentials, error)
}

var _ SocialTokenExchanger = (*oidc.Provider)(nil)

// NativeAuthTransaction runs a native third party login and exchanges its
// token for credentials.
type NativeAuthTransaction struct {
	connection    string
	authenticator NativeAuthenticator
	exchanger     SocialTokenExchanger
	params        map[string]string
	logger        hclog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	start  sync.Once
	result *Result[*oidc.Credentials]
}

// NewNativeAuthTransaction creates a transaction which logs in with
// authenticator and exchanges the token for the connection. ctx bounds the
// login and the exchange.
//
// Supported options: WithParameters, WithLogger
func NewNativeAuthTransaction(ctx context.Context, connection string, authenticator NativeAuthenticator, exchanger SocialTokenExchanger, opt ...Option) (*NativeAuthTransaction, error) {
	const op = "transaction.NewNativeAuthTransaction"
	switch {
	case connection == "":
		return nil, fmt.Errorf("%s: connection is empty: %w", op, ErrInvalidParameter)
	case authenticator == nil:
		return nil, fmt.Errorf("%s: authenticator is nil: %w", op, ErrNilParameter)
	case exchanger == nil:
		return nil, fmt.Errorf("%s: exchanger is nil: %w", op, ErrNilParameter)
	}
	opts := getTransactionOpts(opt...)
	ctx, cancel := context.WithCancel(ctx)
	return &NativeAuthTransaction{
		connection:    connection,
		authenticator: authenticator,
		exchanger:     exchanger,
		params:        opts.withParams,
		logger:        opts.withLogger,
		ctx:           ctx,
		cancel:        cancel,
		result:        newResult[*oidc.Credentials](),
	}, nil
}

// Start runs the login and the exchange in the background. Calls after the
// first do nothing.
func (t *NativeAuthTransaction) Start() {
	t.start.Do(func() {
		go t.run()
	})
}

func (t *NativeAuthTransaction) run() {
	const op = "NativeAuthTransaction.run"
	token, err := t.authenticator.Login(t.ctx)
	if err != nil {
		t.finish(nil, fmt.Errorf("%s: native login failed: %w", op, err))
		return
	}
	t.logger.Debug("exchanging native token", "op", op, "connection", t.connection)
	c, err := t.exchanger.LoginSocial(t.ctx, token, t.connection, t.params)
	if err != nil {
		t.finish(nil, fmt.Errorf("%s: %w", op, err))
		return
	}
	t.finish(c, nil)
}

// Result returns the outcome of the transaction.
func (t *NativeAuthTransaction) Result() *Result[*oidc.Credentials] { return t.result }

// Done is closed once the transaction is resolved.
func (t *NativeAuthTransaction) Done() <-chan struct{} { return t.result.Done() }

// Err returns the failure of a resolved transaction.
func (t *NativeAuthTransaction) Err() error { return t.result.Err() }

// Resume hands u to the authenticator.
func (t *NativeAuthTransaction) Resume(u string) bool {
	if t.result.Resolved() {
		return false
	}
	return t.authenticator.Resume(u)
}

// Cancel cancels the authenticator and resolves the transaction with a
// UserCancelled error.
func (t *NativeAuthTransaction) Cancel() {
	if t.result.Resolved() {
		return
	}
	t.authenticator.Cancel()
	t.finish(nil, &WebAuthError{Code: UserCancelled})
}

func (t *NativeAuthTransaction) finish(c *oidc.Credentials, err error) {
	if t.result.resolve(c, err) {
		t.cancel()
	}
}
