// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_redacted(t *testing.T) {
	t.Parallel()
	const secret = "super secret token"
	tests := []struct {
		name  string
		token interface {
			fmt.Stringer
			json.Marshaler
		}
		want string
	}{
		{name: "access-token", token: AccessToken(secret), want: RedactedAccessToken},
		{name: "refresh-token", token: RefreshToken(secret), want: RedactedRefreshToken},
		{name: "id-token", token: IDToken(secret), want: RedactedIDToken},
		{name: "session-transfer-token", token: SessionTransferToken(secret), want: RedactedSessionTransferToken},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			assert.Equal(tt.want, tt.token.String())
			assert.Equal(tt.want, fmt.Sprintf("%v", tt.token))
			got, err := tt.token.MarshalJSON()
			require.NoError(err)
			assert.Equal(fmt.Sprintf(`"%s"`, tt.want), string(got))
			assert.NotContains(fmt.Sprintf("%+v", tt.token), secret)
		})
	}
}
