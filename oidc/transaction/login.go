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

var (
	_ Transaction = (*LoginTransaction)(nil)
	_ Transaction = (*PARCodeTransaction)(nil)
	_ Transaction = (*NativeAuthTransaction)(nil)
	_ Transaction = (*ClearSessionTransaction)(nil)
)

// LoginTransaction waits for the callback of an authorize request and turns
// it into credentials with its grant.
type LoginTransaction struct {
	redirectURL string
	state       string
	grant       oidc.Grant
	logger      hclog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	resumed bool
	ua      userAgentRef
	result  *Result[*oidc.Credentials]
}

// NewLoginTransaction creates a transaction for the callback sent to
// redirectURL with state. ctx bounds the grant's requests; Cancel cancels
// it.
//
// Supported options: WithUserAgent, WithLogger
func NewLoginTransaction(ctx context.Context, redirectURL, state string, grant oidc.Grant, opt ...Option) (*LoginTransaction, error) {
	const op = "transaction.NewLoginTransaction"
	switch {
	case redirectURL == "":
		return nil, fmt.Errorf("%s: redirect url is empty: %w", op, ErrInvalidParameter)
	case state == "":
		return nil, fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	case grant == nil:
		return nil, fmt.Errorf("%s: grant is nil: %w", op, ErrNilParameter)
	}
	opts := getTransactionOpts(opt...)
	ctx, cancel := context.WithCancel(ctx)
	t := &LoginTransaction{
		redirectURL: redirectURL,
		state:       state,
		grant:       grant,
		logger:      opts.withLogger,
		ctx:         ctx,
		cancel:      cancel,
		result:      newResult[*oidc.Credentials](),
	}
	t.ua.set(opts.withUserAgent)
	return t, nil
}

// State returns the transaction's state.
func (t *LoginTransaction) State() string { return t.state }

// Result returns the outcome of the transaction. Failures are a
// *WebAuthError.
func (t *LoginTransaction) Result() *Result[*oidc.Credentials] { return t.result }

// Done is closed once the transaction is resolved.
func (t *LoginTransaction) Done() <-chan struct{} { return t.result.Done() }

// Err returns the failure of a resolved transaction.
func (t *LoginTransaction) Err() error { return t.result.Err() }

// Resume consumes u when it's a callback for this transaction: it starts
// with the redirect url and carries the transaction's state. An error sent
// by the provider resolves the transaction at once; otherwise the grant
// runs in the background and resolves it.
func (t *LoginTransaction) Resume(u string) bool {
	const op = "LoginTransaction.Resume"
	if t.result.Resolved() || !matchesRedirect(t.redirectURL, u) {
		return false
	}
	items, ok := callbackParams(u)
	if !ok {
		return false
	}
	if items["state"] != t.state {
		t.logger.Debug("ignoring callback with a different state", "op", op)
		return false
	}

	t.mu.Lock()
	if t.resumed {
		t.mu.Unlock()
		return false
	}
	t.resumed = true
	t.mu.Unlock()

	t.logger.Trace("resuming transaction", "op", op, "redirect_url", t.redirectURL)
	if items["error"] != "" {
		t.finish(nil, &WebAuthError{Code: Other, Cause: oidc.NewCallbackError(items)})
		return true
	}
	go func() {
		c, err := t.grant.Credentials(t.ctx, items)
		if err != nil {
			t.finish(nil, NewWebAuthError(err))
			return
		}
		t.finish(c, nil)
	}()
	return true
}

// Cancel resolves the transaction with a UserCancelled error and cancels a
// running grant.
func (t *LoginTransaction) Cancel() {
	t.finish(nil, &WebAuthError{Code: UserCancelled})
}

func (t *LoginTransaction) fail(err error) {
	t.finish(nil, NewWebAuthError(err))
}

func (t *LoginTransaction) finish(c *oidc.Credentials, err error) {
	if !t.result.resolve(c, err) {
		return
	}
	t.ua.release(err)
	t.cancel()
}
