// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "strings"

// ResponseType is the set of artifacts requested from the authorization
// endpoint.
//
// See: https://openid.net/specs/oauth-v2-multiple-response-types-1_0.html
type ResponseType uint8

const (
	// ResponseTypeToken requests an access_token from the authorization
	// endpoint (implicit flow).
	ResponseTypeToken ResponseType = 1 << iota

	// ResponseTypeIDToken requests an id_token from the authorization
	// endpoint (implicit flow).
	ResponseTypeIDToken

	// ResponseTypeCode requests an authorization code (authorization code
	// flow).
	ResponseTypeCode
)

// Has reports whether every artifact of o is requested by r.
func (r ResponseType) Has(o ResponseType) bool {
	return o != 0 && r&o == o
}

// IsImplicit reports whether r is served by the implicit flow.
func (r ResponseType) IsImplicit() bool {
	return !r.Has(ResponseTypeCode) && r != 0
}

// String returns the response_type parameter value.
func (r ResponseType) String() string {
	var parts []string
	for _, v := range []struct {
		t     ResponseType
		label string
	}{
		{ResponseTypeToken, "token"},
		{ResponseTypeIDToken, "id_token"},
		{ResponseTypeCode, "code"},
	} {
		if r.Has(v.t) {
			parts = append(parts, v.label)
		}
	}
	return strings.Join(parts, " ")
}
