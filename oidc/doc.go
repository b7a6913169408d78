// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package oidc is the client side of OpenID Connect Core 1.0 for public
(native) clients. It supports the Authorization Code Flow with PKCE and the
Implicit Flow.

Config holds the client's static settings and Provider sends the requests
of the flows: code exchange, refresh, revocation, session transfer and
social token login. PKCEGrant and ImplicitGrant turn the parameters of an
authentication callback into validated Credentials; every id_token is
checked with the jwt package before credentials are returned.

The transaction sub-package drives one authentication attempt from the
authorize url to its callback, and the credentials package persists and
refreshes the resulting Credentials.

StartTestProvider runs a local provider for tests.
*/
package oidc
