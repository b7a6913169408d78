// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/hashicorp/capauth/oidc"
)

// SuccessResponseFunc is used by Handler to create a http response when the
// transaction resolved successfully.
//
// The function state parameter will contain the state that was returned as
// part of the authentication response. The function should use the
// http.ResponseWriter to send back whatever content (headers, html, JSON,
// etc) it wishes to the browser that followed the redirect. The outcome of
// the transaction itself is read from the transaction.
type SuccessResponseFunc func(state string, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Handler to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the authentication
// response. respErr is set when the provider reported the error, either in
// the callback parameters or from its token endpoint; e is the failure
// itself. The function should use the http.ResponseWriter to send back
// whatever content it wishes to the browser.
type ErrorResponseFunc func(state string, respErr *oidc.AuthenticationError, e error, w http.ResponseWriter, req *http.Request)
