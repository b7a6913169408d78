// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// capauth (collection of authentication packages) lets public OAuth2/OIDC
// clients, such as CLIs and desktop apps, authenticate users and keep their
// credentials fresh.
//
//   - jwt validates RS256 signed id_tokens against a JWKS.
//   - oidc holds the client configuration, the token endpoint calls and the
//     authorization code (PKCE) and implicit grants.
//   - oidc/transaction drives an authentication attempt from the authorize
//     url to its callback.
//   - oidc/callback routes loopback redirects to the waiting transaction.
//   - credentials stores credentials and refreshes them when they expire.
package capauth
