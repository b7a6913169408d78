// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// Transaction is one in-flight authentication attempt waiting for its
// callback url.
type Transaction interface {
	// Resume hands the callback url to the transaction. It returns false,
	// without side effects, when the url isn't meant for the transaction
	// and true when the url was consumed, successfully or not.
	Resume(u string) bool

	// Cancel resolves the transaction with a user cancelled error. It's a
	// no-op once the transaction is resolved.
	Cancel()

	// Done is closed once the transaction is resolved.
	Done() <-chan struct{}

	// Err returns the failure of a resolved transaction.
	Err() error
}

// UserAgent presents an url to the user: a system browser, a web view or a
// native login sheet.
type UserAgent interface {
	// Start presents u.
	Start(ctx context.Context, u string) error

	// Finish is called once when the transaction using the user agent is
	// resolved. err is nil on success.
	Finish(err error)
}

// UserAgentFunc adapts a function which presents an url to a UserAgent
// whose Finish does nothing.
type UserAgentFunc func(ctx context.Context, u string) error

// Start calls f(ctx, u).
func (f UserAgentFunc) Start(ctx context.Context, u string) error { return f(ctx, u) }

// Finish does nothing.
func (f UserAgentFunc) Finish(error) {}

// userAgentRef holds the user agent of a transaction until it's resolved.
type userAgentRef struct {
	mu sync.Mutex
	ua UserAgent
}

func (r *userAgentRef) set(ua UserAgent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ua = ua
}

// release finishes the user agent, at most once.
func (r *userAgentRef) release(err error) {
	r.mu.Lock()
	ua := r.ua
	r.ua = nil
	r.mu.Unlock()
	if ua != nil {
		ua.Finish(err)
	}
}

// matchesRedirect reports whether u starts with redirectURL, ignoring case.
func matchesRedirect(redirectURL, u string) bool {
	if redirectURL == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(u), strings.ToLower(redirectURL))
}

// callbackParams returns the query and fragment parameters of u. Fragment
// parameters win over query parameters with the same name.
func callbackParams(u string) (map[string]string, bool) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, false
	}
	items := map[string]string{}
	for k, v := range parsed.Query() {
		if len(v) > 0 {
			items[k] = v[0]
		}
	}
	if frag := parsed.EscapedFragment(); frag != "" {
		fv, err := url.ParseQuery(frag)
		if err != nil {
			return nil, false
		}
		for k, v := range fv {
			if len(v) > 0 {
				items[k] = v[0]
			}
		}
	}
	return items, true
}
