// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "encoding/json"

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// RefreshToken is an oauth refresh_token
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}

// SessionTransferToken is a short lived token used to carry an
// authenticated session into a web context.
type SessionTransferToken string

// RedactedSessionTransferToken is the redacted string or json for a session
// transfer token
const RedactedSessionTransferToken = "[REDACTED: session_transfer_token]"

// String will redact the token
func (t SessionTransferToken) String() string {
	return RedactedSessionTransferToken
}

// MarshalJSON will redact the token
func (t SessionTransferToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedSessionTransferToken)
}
