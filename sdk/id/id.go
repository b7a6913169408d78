// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// DefaultSize is the number of random bytes used by New.
const DefaultSize = 32

// New generates a random, url safe ID from DefaultSize random bytes with an
// optional prefix. The ID is suitable for an oauth state or an oidc nonce.
func New(optionalPrefix string) (string, error) {
	return NewSize(DefaultSize, optionalPrefix)
}

// NewSize generates a random, url safe ID from size random bytes with an
// optional prefix.
func NewSize(size int, optionalPrefix string) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("unable to generate id: size %d is not greater than zero", size)
	}
	b, err := uuid.GenerateRandomBytes(size)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
