// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"strings"
	"time"

	"github.com/hashicorp/capauth/oidc"
)

// WillExpire reports whether the access token of c expires within d of
// now, that is now+d >= c.ExpiresAt.
func WillExpire(c *oidc.Credentials, d time.Duration, now time.Time) bool {
	if c == nil {
		return true
	}
	return c.Lifetime(now) <= d
}

// HasExpired reports whether the access token of c is expired at now.
func HasExpired(c *oidc.Credentials, now time.Time) bool {
	if c == nil {
		return true
	}
	return c.Expired(now)
}

// HasScopeChanged reports whether scope requests any scope that c wasn't
// granted. Scopes are compared as sets of space separated, case sensitive
// values. An empty scope never changes.
func HasScopeChanged(c *oidc.Credentials, scope string) bool {
	requested := strings.Fields(scope)
	if len(requested) == 0 {
		return false
	}
	if c == nil {
		return true
	}
	granted := map[string]struct{}{}
	for _, s := range strings.Fields(c.Scope) {
		granted[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := granted[s]; !ok {
			return true
		}
	}
	return false
}
