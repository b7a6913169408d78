// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"errors"
	"fmt"

	"github.com/hashicorp/capauth/oidc"
)

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrNilParameter         = errors.New("nil parameter")
	ErrWebAuth              = errors.New("web authentication error")
	ErrUserCancelled        = errors.New("user cancelled")
	ErrInvalidInvitationURL = errors.New("invalid invitation url")
	ErrUserAgentFailed      = errors.New("user agent failed")
)

// WebAuthErrorCode classifies a failed web authentication.
type WebAuthErrorCode int

const (
	Unknown WebAuthErrorCode = iota
	UserCancelled
	NoAuthorizationCode
	PKCENotAllowed
	IDTokenValidationFailed
	InvalidInvitationURL
	Other
)

func (c WebAuthErrorCode) String() string {
	switch c {
	case UserCancelled:
		return "user_cancelled"
	case NoAuthorizationCode:
		return "no_authorization_code"
	case PKCENotAllowed:
		return "pkce_not_allowed"
	case IDTokenValidationFailed:
		return "id_token_validation_failed"
	case InvalidInvitationURL:
		return "invalid_invitation_url"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

func (c WebAuthErrorCode) sentinel() error {
	switch c {
	case UserCancelled:
		return ErrUserCancelled
	case NoAuthorizationCode:
		return oidc.ErrNoAuthorizationCode
	case PKCENotAllowed:
		return oidc.ErrPKCENotAllowed
	case IDTokenValidationFailed:
		return oidc.ErrIDTokenValidationFailed
	case InvalidInvitationURL:
		return ErrInvalidInvitationURL
	}
	return nil
}

// WebAuthError is the failure delivered by a web authentication
// transaction. Cause is the underlying error, if any; for an error sent by
// the provider in the callback it is an *oidc.AuthenticationError.
type WebAuthError struct {
	Code  WebAuthErrorCode
	Cause error
}

// NewWebAuthError returns an error with the code which matches cause.
func NewWebAuthError(cause error) *WebAuthError {
	var we *WebAuthError
	if errors.As(cause, &we) {
		return we
	}
	code := Other
	switch {
	case cause == nil:
		code = Unknown
	case errors.Is(cause, ErrUserCancelled):
		code = UserCancelled
	case errors.Is(cause, oidc.ErrNoAuthorizationCode):
		code = NoAuthorizationCode
	case errors.Is(cause, oidc.ErrPKCENotAllowed):
		code = PKCENotAllowed
	case errors.Is(cause, oidc.ErrIDTokenValidationFailed):
		code = IDTokenValidationFailed
	case errors.Is(cause, ErrInvalidInvitationURL):
		code = InvalidInvitationURL
	}
	return &WebAuthError{Code: code, Cause: cause}
}

func (e *WebAuthError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("web authentication failed (%s): %s", e.Code, e.Cause)
	case e.Code == UserCancelled:
		return "web authentication failed (user_cancelled): the user cancelled the web authentication"
	default:
		return fmt.Sprintf("web authentication failed (%s)", e.Code)
	}
}

// Unwrap returns ErrWebAuth, the sentinel of the code and the cause.
func (e *WebAuthError) Unwrap() []error {
	errs := []error{ErrWebAuth}
	if s := e.Code.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// AuthenticationError returns the provider's error when the failure came
// from the callback parameters or the token endpoint.
func (e *WebAuthError) AuthenticationError() (*oidc.AuthenticationError, bool) {
	var ae *oidc.AuthenticationError
	if errors.As(e.Cause, &ae) {
		return ae, true
	}
	return nil, false
}
