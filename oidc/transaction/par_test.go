// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPARCodeTransaction_Resume(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		state       string
		u           string
		wantResumed bool
		want        *AuthorizationCode
		wantCode    WebAuthErrorCode
	}{
		{
			name:        "code",
			u:           testRedirectURL + "?code=123456",
			wantResumed: true,
			want:        &AuthorizationCode{Code: "123456"},
		},
		{
			name:        "code-and-state",
			state:       "abc",
			u:           testRedirectURL + "?code=123456&state=abc",
			wantResumed: true,
			want:        &AuthorizationCode{Code: "123456", State: "abc"},
		},
		{
			name:        "unchecked-state-is-returned",
			u:           testRedirectURL + "?code=123456&state=xyz",
			wantResumed: true,
			want:        &AuthorizationCode{Code: "123456", State: "xyz"},
		},
		{
			name:        "missing-code",
			u:           testRedirectURL + "?foo=bar",
			wantResumed: true,
			wantCode:    NoAuthorizationCode,
		},
		{
			name:        "error-param",
			u:           testRedirectURL + "?error=login_required&error_description=Login+required",
			wantResumed: true,
			wantCode:    Other,
		},
		{
			name:  "state-mismatch",
			state: "abc",
			u:     testRedirectURL + "?code=123456&state=xyz",
		},
		{
			name:  "missing-required-state",
			state: "abc",
			u:     testRedirectURL + "?code=123456",
		},
		{
			name: "other-url",
			u:    "https://example.com/callback?code=123456",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			ua := &testUserAgent{}
			tx, err := NewPARCodeTransaction(testRedirectURL, WithState(tt.state), WithUserAgent(ua))
			require.NoError(err)

			assert.Equal(tt.wantResumed, tx.Resume(tt.u))
			if !tt.wantResumed {
				assert.False(tx.Result().Resolved())
				assert.Equal(0, ua.finishCount())
				return
			}
			assert.Equal(1, ua.finishCount())
			got, err := tx.Result().Wait(waitCtx(t))
			if tt.want == nil {
				var webErr *WebAuthError
				require.True(errors.As(err, &webErr))
				assert.Equal(tt.wantCode, webErr.Code)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
			assert.False(tx.Resume(tt.u))
		})
	}
}

func TestPARCodeTransaction_Cancel(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	_, err := NewPARCodeTransaction("")
	assert.ErrorIs(err, ErrInvalidParameter)

	ua := &testUserAgent{}
	tx, err := NewPARCodeTransaction(testRedirectURL, WithUserAgent(ua))
	require.NoError(err)
	tx.Cancel()
	tx.Cancel()
	assert.Equal(1, ua.finishCount())
	assert.ErrorIs(tx.Err(), ErrUserCancelled)
	assert.False(tx.Resume(testRedirectURL + "?code=123456"))
}

// reentrantUserAgent calls onFinish from Finish.
type reentrantUserAgent struct {
	onFinish func()
}

func (ua *reentrantUserAgent) Start(context.Context, string) error { return nil }

func (ua *reentrantUserAgent) Finish(error) { ua.onFinish() }

func TestPARCodeTransaction_reentrantFinish(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	var tx *PARCodeTransaction
	var resumedAgain bool
	ua := &reentrantUserAgent{onFinish: func() {
		resumedAgain = tx.Resume(testRedirectURL + "?code=654321")
		tx.Cancel()
	}}
	tx, err := NewPARCodeTransaction(testRedirectURL, WithUserAgent(ua))
	require.NoError(err)

	done := make(chan bool)
	go func() { done <- tx.Resume(testRedirectURL + "?code=123456") }()
	select {
	case resumed := <-done:
		assert.True(resumed)
	case <-time.After(5 * time.Second):
		t.Fatal("Resume did not return")
	}
	assert.False(resumedAgain)
	got, err := tx.Result().Wait(waitCtx(t))
	require.NoError(err)
	assert.Equal(&AuthorizationCode{Code: "123456"}, got)
}
