// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/hashicorp/capauth/sdk/id"
)

// NewID generates a ID with an optional prefix. The ID generated is suitable
// for a state or a nonce.
func NewID(optionalPrefix string) (string, error) {
	const op = "oidc.NewID"
	v, err := id.New(optionalPrefix)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrIdGeneratorFailed, err)
	}
	return v, nil
}

// NewState generates the CSRF state for one authentication attempt.
func NewState() (string, error) {
	return NewID("")
}

// NewNonce generates the replay protection nonce for one authentication
// attempt.
func NewNonce() (string, error) {
	return NewID("")
}
