// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import "sync"

var defaultStore = NewStore()

// DefaultStore returns the process wide store.
func DefaultStore() *Store { return defaultStore }

// Store holds the current transaction, so a callback url received by the
// application can be routed to it. It is safe for concurrent use.
//
// Only one transaction is current. Storing a transaction drops the previous
// one without cancelling it; callers cancel an abandoned attempt
// themselves.
type Store struct {
	mu      sync.Mutex
	current Transaction
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// Store makes t the current transaction.
func (s *Store) Store(t Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = t
}

// Current returns the current transaction or nil.
func (s *Store) Current() Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Resume hands u to the current transaction. It returns false when there's
// no current transaction. The transaction is removed from the store once it
// consumed u or is resolved.
func (s *Store) Resume(u string) bool {
	_, resumed := s.ResumeTransaction(u)
	return resumed
}

// ResumeTransaction is Resume, also returning the transaction u was handed
// to. The transaction is nil when none was current.
func (s *Store) ResumeTransaction(u string) (Transaction, bool) {
	t := s.Current()
	if t == nil {
		return nil, false
	}
	resumed := t.Resume(u)
	if resumed || isDone(t) {
		s.clearIf(t)
	}
	return t, resumed
}

// Cancel cancels and removes the current transaction, if any.
func (s *Store) Cancel() {
	s.mu.Lock()
	t := s.current
	s.current = nil
	s.mu.Unlock()
	if t != nil {
		t.Cancel()
	}
}

// Clear removes the current transaction without cancelling it.
func (s *Store) Clear() {
	s.Store(nil)
}

// clearIf removes t if it's still the current transaction.
func (s *Store) clearIf(t Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == t {
		s.current = nil
	}
}

func isDone(t Transaction) bool {
	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}
