// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package jwt validates OIDC id_tokens. An IDTokenValidator first verifies the
token's RS256 signature with a key from a JWKSFetcher and only then runs the
claim validators (iss, sub, aud, exp, iat, nonce, azp, auth_time and
org_id) configured by a ValidatorContext.

Validation errors are typed: errors.Is reports the kind of failure and
errors.As gives access to a ClaimError, TimeClaimError, AlgorithmError or
MissingPublicKeyError with the expected and actual values.
*/
package jwt
