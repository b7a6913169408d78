// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
)

const (
	codeUnknown   = "a0.sdk.internal_error.unknown"
	codeNonJSON   = "a0.sdk.internal_error.plain"
	codeEmptyBody = "a0.sdk.internal_error.empty"
	codeNetwork   = "a0.sdk.internal_error.network"
)

// AuthenticationError is an error reported by the provider, either in the
// body of a token, revoke or userinfo response or in the parameters of an
// authentication callback.
type AuthenticationError struct {
	// StatusCode of the http response, zero for callback errors.
	StatusCode int

	info  map[string]interface{}
	cause error
}

// NewAuthenticationError builds an error from a provider response body.
// Bodies which aren't a JSON object are kept as a plain description.
func NewAuthenticationError(statusCode int, body []byte) *AuthenticationError {
	e := &AuthenticationError{StatusCode: statusCode}
	var info map[string]interface{}
	switch {
	case len(body) == 0:
		e.info = map[string]interface{}{"code": codeEmptyBody, "description": "Empty response body"}
	case json.Unmarshal(body, &info) != nil || info == nil:
		e.info = map[string]interface{}{"code": codeNonJSON, "description": string(body)}
	default:
		e.info = info
	}
	return e
}

// NewCallbackError builds an error from the error and error_description
// parameters of a callback.
func NewCallbackError(items map[string]string) *AuthenticationError {
	info := make(map[string]interface{}, len(items))
	for k, v := range items {
		info[k] = v
	}
	return &AuthenticationError{info: info}
}

// NewNetworkError wraps a transport failure. IsNetworkError reports true for
// it.
func NewNetworkError(cause error) *AuthenticationError {
	return &AuthenticationError{
		info:  map[string]interface{}{"code": codeNetwork, "description": "Unable to complete the operation."},
		cause: cause,
	}
}

// Code is the provider's error code, or an internal code when the provider
// didn't send one.
func (e *AuthenticationError) Code() string {
	for _, k := range []string{"error", "code"} {
		if s, ok := e.info[k].(string); ok {
			return s
		}
	}
	return codeUnknown
}

// Description of the error. It is meant for debugging only.
func (e *AuthenticationError) Description() string {
	for _, k := range []string{"description", "error_description"} {
		if s, ok := e.info[k].(string); ok {
			return s
		}
	}
	if code := e.Code(); code != codeUnknown {
		return fmt.Sprintf("Received error with code %s", code)
	}
	return fmt.Sprintf("Failed with unknown error %v", e.info)
}

// Info returns the raw error payload.
func (e *AuthenticationError) Info() map[string]interface{} {
	out := make(map[string]interface{}, len(e.info))
	for k, v := range e.info {
		out[k] = v
	}
	return out
}

// Value returns a single member of the error payload.
func (e *AuthenticationError) Value(key string) (interface{}, bool) {
	v, ok := e.info[key]
	return v, ok
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code(), e.StatusCode, e.Description())
	}
	return fmt.Sprintf("%s: %s", e.Code(), e.Description())
}

// Unwrap returns ErrAuthentication and, for network failures, ErrNetwork and
// the transport error.
func (e *AuthenticationError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrAuthentication, ErrNetwork, e.cause}
	}
	return []error{ErrAuthentication}
}

// IsAccessDenied reports whether the user or a rule denied access.
func (e *AuthenticationError) IsAccessDenied() bool { return e.Code() == "access_denied" }

// IsLoginRequired reports whether a silent authentication needs user
// interaction.
func (e *AuthenticationError) IsLoginRequired() bool { return e.Code() == "login_required" }

func (e *AuthenticationError) IsMultifactorRequired() bool {
	c := e.Code()
	return c == "mfa_required" || c == "a0.mfa_required"
}

func (e *AuthenticationError) IsInvalidCredentials() bool {
	if e.Code() == "invalid_user_password" {
		return true
	}
	if e.Code() != "invalid_grant" {
		return false
	}
	switch e.Description() {
	case "Wrong email or password.", "Wrong email or verification code.", "Wrong phone number or verification code.":
		return true
	}
	return false
}

// IsRefreshTokenDeleted reports whether the refresh token was revoked or
// rotated away.
func (e *AuthenticationError) IsRefreshTokenDeleted() bool {
	return e.Code() == "invalid_grant" && e.Description() == "Unknown or invalid refresh token."
}

func (e *AuthenticationError) IsTooManyAttempts() bool { return e.Code() == "too_many_attempts" }

// IsNetworkError reports whether the provider couldn't be reached.
func (e *AuthenticationError) IsNetworkError() bool { return e.cause != nil }
