// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Header holds the registered JOSE header parameters used during validation.
// Every header parameter is also available through Params.
type Header struct {
	Algorithm string
	KeyID     string
	Type      string
	Params    map[string]Value
}

// Token is a decoded, not yet verified, compact JWT.
type Token struct {
	raw       string
	Header    Header
	Claims    Claims
	Signature []byte
}

// Raw returns the compact serialization the token was decoded from.
func (t *Token) Raw() string { return t.raw }

// SigningInput returns the bytes covered by the signature:
// base64url(header) + "." + base64url(payload).
func (t *Token) SigningInput() string {
	i := strings.LastIndex(t.raw, ".")
	if i < 0 {
		return ""
	}
	return t.raw[:i]
}

// Decode parses the header and payload of a compact JWT without verifying
// its signature.
func Decode(raw string) (*Token, error) {
	const op = "jwt.Decode"
	if raw == "" {
		return nil, fmt.Errorf("%s: token is empty: %w", op, ErrCannotDecode)
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%s: token has %d segments, expected 3: %w", op, len(parts), ErrCannotDecode)
	}
	headerParams, err := decodeSegment(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%s: malformed header: %w: %w", op, ErrCannotDecode, err)
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%s: malformed payload: %w: %w", op, ErrCannotDecode, err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[2], "="))
	if err != nil {
		return nil, fmt.Errorf("%s: malformed signature: %w: %w", op, ErrCannotDecode, err)
	}

	h := Header{Params: headerParams}
	h.Algorithm, _ = headerParams["alg"].Str()
	h.KeyID, _ = headerParams["kid"].Str()
	h.Type, _ = headerParams["typ"].Str()
	if strings.EqualFold(h.Algorithm, "none") && len(sig) == 0 {
		return nil, fmt.Errorf("%s: unsigned token: %w", op, ErrCannotDecode)
	}

	return &Token{
		raw:       raw,
		Header:    h,
		Claims:    Claims(payload),
		Signature: sig,
	}, nil
}

// decodeSegment decodes a base64url segment which must hold a JSON object.
func decodeSegment(seg string) (map[string]Value, error) {
	if seg == "" {
		return nil, errors.New("empty segment")
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
	if err != nil {
		return nil, err
	}
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	obj, ok := v.Object()
	if !ok {
		return nil, fmt.Errorf("segment is a json %s, expected an object", v.Kind())
	}
	return obj, nil
}
