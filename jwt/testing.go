// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
)

// TestGenerateRSAKey will generate a test 2048 bit RSA key.
func TestGenerateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

// TestJWK returns a usable RS256 signing JWK for pub.
func TestJWK(t *testing.T, pub *rsa.PublicKey, kid string) JWK {
	t.Helper()
	require := require.New(t)
	require.NotNil(pub)
	raw, err := jose.JSONWebKey{Key: pub, KeyID: kid, Use: "sig", Algorithm: RS256}.MarshalJSON()
	require.NoError(err)
	var k JWK
	require.NoError(json.Unmarshal(raw, &k))
	return k
}

// TestSignJWT will bundle the provided claims into a test JWT signed with
// key using RS256. The kid header is set when kid is not empty.
func TestSignJWT(t *testing.T, key *rsa.PrivateKey, kid string, claims map[string]interface{}) string {
	t.Helper()
	require := require.New(t)

	opts := (&jose.SignerOptions{}).WithType("JWT")
	if kid != "" {
		opts = opts.WithHeader("kid", kid)
	}
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, opts)
	require.NoError(err)

	payload, err := json.Marshal(claims)
	require.NoError(err)
	jws, err := sig.Sign(payload)
	require.NoError(err)
	raw, err := jws.CompactSerialize()
	require.NoError(err)
	return raw
}

// TestEncodeJWT builds a compact JWT from an arbitrary header, claims and
// signature without signing anything.
func TestEncodeJWT(t *testing.T, header, claims map[string]interface{}, signature []byte) string {
	t.Helper()
	require := require.New(t)
	h, err := json.Marshal(header)
	require.NoError(err)
	c, err := json.Marshal(claims)
	require.NoError(err)
	return strings.Join([]string{
		base64.RawURLEncoding.EncodeToString(h),
		base64.RawURLEncoding.EncodeToString(c),
		base64.RawURLEncoding.EncodeToString(signature),
	}, ".")
}
