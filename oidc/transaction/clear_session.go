// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// ClearSessionTransaction waits for the provider to redirect back after a
// logout.
type ClearSessionTransaction struct {
	redirectURL string
	logger      hclog.Logger
	ua          userAgentRef
	result      *Result[struct{}]
}

// NewClearSessionTransaction creates a transaction for the logout redirect
// to redirectURL.
//
// Supported options: WithUserAgent, WithLogger
func NewClearSessionTransaction(redirectURL string, opt ...Option) (*ClearSessionTransaction, error) {
	const op = "transaction.NewClearSessionTransaction"
	if redirectURL == "" {
		return nil, fmt.Errorf("%s: redirect url is empty: %w", op, ErrInvalidParameter)
	}
	opts := getTransactionOpts(opt...)
	t := &ClearSessionTransaction{
		redirectURL: redirectURL,
		logger:      opts.withLogger,
		result:      newResult[struct{}](),
	}
	t.ua.set(opts.withUserAgent)
	return t, nil
}

// Result returns the outcome of the transaction.
func (t *ClearSessionTransaction) Result() *Result[struct{}] { return t.result }

// Done is closed once the transaction is resolved.
func (t *ClearSessionTransaction) Done() <-chan struct{} { return t.result.Done() }

// Err returns the failure of a resolved transaction.
func (t *ClearSessionTransaction) Err() error { return t.result.Err() }

// Resume resolves the transaction successfully for any url starting with
// the redirect url.
func (t *ClearSessionTransaction) Resume(u string) bool {
	if !matchesRedirect(t.redirectURL, u) {
		return false
	}
	if !t.result.resolve(struct{}{}, nil) {
		return false
	}
	t.logger.Trace("session cleared", "op", "ClearSessionTransaction.Resume")
	t.ua.release(nil)
	return true
}

// Cancel resolves the transaction with a UserCancelled error.
func (t *ClearSessionTransaction) Cancel() {
	t.fail(&WebAuthError{Code: UserCancelled})
}

func (t *ClearSessionTransaction) fail(err error) {
	err = NewWebAuthError(err)
	if t.result.resolve(struct{}{}, err) {
		t.ua.release(err)
	}
}
