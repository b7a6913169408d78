// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"context"
	"sync"
	"time"
)

// DefaultAppLifecycleTimeout is the usual timeout of PolicyAppLifecycle.
const DefaultAppLifecycleTimeout = time.Hour

// BiometricPrompt is the local authentication collaborator (Touch ID, a
// hardware key, a PIN entry, ...).
type BiometricPrompt interface {
	// Available returns an error when the prompt can't be shown.
	Available() error

	// Authenticate shows the prompt with title and blocks until the user
	// completes or dismisses it.
	Authenticate(ctx context.Context, title string) error
}

type policyKind int

const (
	policyAlways policyKind = iota
	policySession
	policyAppLifecycle
)

// BiometricPolicy decides when a successful biometric authentication can
// be reused. The zero value is PolicyAlways.
type BiometricPolicy struct {
	kind    policyKind
	timeout time.Duration
}

// PolicyAlways prompts on every access.
func PolicyAlways() BiometricPolicy { return BiometricPolicy{kind: policyAlways} }

// PolicySession reuses an authentication for timeout.
func PolicySession(timeout time.Duration) BiometricPolicy {
	return BiometricPolicy{kind: policySession, timeout: timeout}
}

// PolicyAppLifecycle reuses an authentication for timeout, until
// ClearBiometricSession is called. See DefaultAppLifecycleTimeout.
func PolicyAppLifecycle(timeout time.Duration) BiometricPolicy {
	return BiometricPolicy{kind: policyAppLifecycle, timeout: timeout}
}

// Timeout of the policy, zero for PolicyAlways.
func (p BiometricPolicy) Timeout() time.Duration { return p.timeout }

func (p BiometricPolicy) String() string {
	switch p.kind {
	case policySession:
		return "session(" + p.timeout.String() + ")"
	case policyAppLifecycle:
		return "app_lifecycle(" + p.timeout.String() + ")"
	default:
		return "always"
	}
}

// BiometricSession records the last successful biometric authentication.
// One session is shared by every Manager of the process unless a Manager is
// given its own with WithBiometricSession. It is safe for concurrent use.
type BiometricSession struct {
	mu       sync.RWMutex
	lastAuth time.Time
}

var defaultBiometricSession = NewBiometricSession()

// NewBiometricSession creates an empty session.
func NewBiometricSession() *BiometricSession { return &BiometricSession{} }

// DefaultBiometricSession returns the process-wide session.
func DefaultBiometricSession() *BiometricSession { return defaultBiometricSession }

// ClearBiometricSession clears the process-wide session.
func ClearBiometricSession() { defaultBiometricSession.Clear() }

// Record a successful authentication at t.
func (s *BiometricSession) Record(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAuth = t
}

// LastAuthenticated returns the time of the last successful authentication
// and false when there is none.
func (s *BiometricSession) LastAuthenticated() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAuth, !s.lastAuth.IsZero()
}

// Clear the session.
func (s *BiometricSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAuth = time.Time{}
}

// Valid reports whether an authentication recorded in s can be reused at
// now under policy p.
func (s *BiometricSession) Valid(p BiometricPolicy, now time.Time) bool {
	if p.kind == policyAlways || p.timeout <= 0 {
		return false
	}
	last, ok := s.LastAuthenticated()
	if !ok {
		return false
	}
	// timeout may be as large as math.MaxInt64, so never compute last+timeout.
	elapsed := now.Sub(last)
	return elapsed >= 0 && elapsed < p.timeout
}
