// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// RS256 is the only signing algorithm accepted for id_tokens.
const RS256 = "RS256"

// JWK is a JSON Web Key as published in a provider's key set. Only RSA
// signing keys are usable.
type JWK struct {
	KeyType               string   `json:"kty"`
	KeyID                 string   `json:"kid,omitempty"`
	Usage                 string   `json:"use,omitempty"`
	Algorithm             string   `json:"alg,omitempty"`
	Modulus               string   `json:"n,omitempty"`
	Exponent              string   `json:"e,omitempty"`
	CertificateURL        string   `json:"x5u,omitempty"`
	CertificateThumbprint string   `json:"x5t,omitempty"`
	CertificateChain      []string `json:"x5c,omitempty"`
}

// JWKS is a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// Key returns the first key with the given key id.
func (s *JWKS) Key(kid string) (JWK, bool) {
	if s == nil || kid == "" {
		return JWK{}, false
	}
	for _, k := range s.Keys {
		if k.KeyID == kid {
			return k, true
		}
	}
	return JWK{}, false
}

// RSAPublicKey returns the RSA public key for verifying a token signed with
// alg. The key must be an RSA signing key declared for alg.
func (k JWK) RSAPublicKey(alg string) (*rsa.PublicKey, error) {
	const op = "JWK.RSAPublicKey"
	switch {
	case k.KeyType != "RSA":
		return nil, fmt.Errorf("%s: key type %q is not RSA: %w", op, k.KeyType, ErrInvalidParameter)
	case k.Usage != "sig":
		return nil, fmt.Errorf("%s: key use %q is not sig: %w", op, k.Usage, ErrInvalidParameter)
	case k.Algorithm != alg:
		return nil, fmt.Errorf("%s: key algorithm %q does not match %q: %w", op, k.Algorithm, alg, ErrInvalidParameter)
	}
	raw, err := json.Marshal(k)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to encode key: %w: %w", op, ErrInvalidParameter, err)
	}
	var jk jose.JSONWebKey
	if err := jk.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%s: unable to decode key: %w: %w", op, ErrInvalidParameter, err)
	}
	if !jk.Valid() {
		return nil, fmt.Errorf("%s: key is not valid: %w", op, ErrInvalidParameter)
	}
	pub, ok := jk.Key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s: key is %T, not an RSA public key: %w", op, jk.Key, ErrInvalidParameter)
	}
	if pub.E < 2 {
		return nil, fmt.Errorf("%s: exponent out of range: %w", op, ErrInvalidParameter)
	}
	return pub, nil
}
