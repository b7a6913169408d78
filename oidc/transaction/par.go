// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/capauth/oidc"
)

// AuthorizationCode is the outcome of a pushed authorization request. The
// code is exchanged by the caller's backend.
type AuthorizationCode struct {
	Code  string
	State string
}

// PARCodeTransaction waits for the callback of a pushed authorization
// request and returns the authorization code, unexchanged.
type PARCodeTransaction struct {
	redirectURL string
	state       string
	logger      hclog.Logger

	mu      sync.Mutex
	resumed bool
	ua      userAgentRef
	result  *Result[*AuthorizationCode]
}

// NewPARCodeTransaction creates a transaction for the callback sent to
// redirectURL. The callback's state is only checked when WithState is used.
//
// Supported options: WithState, WithUserAgent, WithLogger
func NewPARCodeTransaction(redirectURL string, opt ...Option) (*PARCodeTransaction, error) {
	const op = "transaction.NewPARCodeTransaction"
	if redirectURL == "" {
		return nil, fmt.Errorf("%s: redirect url is empty: %w", op, ErrInvalidParameter)
	}
	opts := getTransactionOpts(opt...)
	t := &PARCodeTransaction{
		redirectURL: redirectURL,
		state:       opts.withState,
		logger:      opts.withLogger,
		result:      newResult[*AuthorizationCode](),
	}
	t.ua.set(opts.withUserAgent)
	return t, nil
}

// Result returns the outcome of the transaction. Failures are a
// *WebAuthError.
func (t *PARCodeTransaction) Result() *Result[*AuthorizationCode] { return t.result }

// Done is closed once the transaction is resolved.
func (t *PARCodeTransaction) Done() <-chan struct{} { return t.result.Done() }

// Err returns the failure of a resolved transaction.
func (t *PARCodeTransaction) Err() error { return t.result.Err() }

// Resume consumes u when it starts with the redirect url and, if the
// transaction has a state, carries it. A callback without a code is
// consumed and resolves a NoAuthorizationCode error.
func (t *PARCodeTransaction) Resume(u string) bool {
	const op = "PARCodeTransaction.Resume"
	if t.result.Resolved() || !matchesRedirect(t.redirectURL, u) {
		return false
	}
	items, ok := callbackParams(u)
	if !ok {
		return false
	}
	if t.state != "" && items["state"] != t.state {
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

	switch {
	case items["error"] != "":
		t.finish(nil, &WebAuthError{Code: Other, Cause: oidc.NewCallbackError(items)})
	case items["code"] == "":
		t.finish(nil, &WebAuthError{Code: NoAuthorizationCode, Cause: fmt.Errorf("%s: %w", op, oidc.ErrNoAuthorizationCode)})
	default:
		t.finish(&AuthorizationCode{Code: items["code"], State: items["state"]}, nil)
	}
	return true
}

// Cancel resolves the transaction with a UserCancelled error.
func (t *PARCodeTransaction) Cancel() {
	t.finish(nil, &WebAuthError{Code: UserCancelled})
}

func (t *PARCodeTransaction) fail(err error) {
	t.finish(nil, NewWebAuthError(err))
}

func (t *PARCodeTransaction) finish(c *AuthorizationCode, err error) {
	if t.result.resolve(c, err) {
		t.ua.release(err)
	}
}
