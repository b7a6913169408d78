// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// Storage is the secure store the Manager persists credentials in. Get and
// Delete return an error wrapping ErrNotFound when key has no entry.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
	Delete(key string) error
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*KeyringStorage)(nil)
)

// MemoryStorage keeps entries in process memory. It is safe for concurrent
// use.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: map[string][]byte{}}
}

// Get returns a copy of the entry for key.
func (s *MemoryStorage) Get(key string) ([]byte, error) {
	const op = "MemoryStorage.Get"
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

// Set replaces the entry for key.
func (s *MemoryStorage) Set(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append([]byte(nil), data...)
	return nil
}

// Delete removes the entry for key.
func (s *MemoryStorage) Delete(key string) error {
	const op = "MemoryStorage.Delete"
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
	}
	delete(s.entries, key)
	return nil
}

// KeyringStorage keeps entries in the operating system's keyring under a
// service name. Entries are base64 encoded since keyrings store strings.
type KeyringStorage struct {
	service string
}

// NewKeyringStorage creates a KeyringStorage for service.
func NewKeyringStorage(service string) (*KeyringStorage, error) {
	const op = "credentials.NewKeyringStorage"
	if service == "" {
		return nil, fmt.Errorf("%s: service is empty: %w", op, ErrInvalidParameter)
	}
	return &KeyringStorage{service: service}, nil
}

// Get the entry for key from the keyring.
func (s *KeyringStorage) Get(key string) ([]byte, error) {
	const op = "KeyringStorage.Get"
	v, err := keyring.Get(s.service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return nil, fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to decode entry %q: %w", op, key, err)
	}
	return b, nil
}

// Set the entry for key in the keyring.
func (s *KeyringStorage) Set(key string, data []byte) error {
	const op = "KeyringStorage.Set"
	if err := keyring.Set(s.service, key, base64.StdEncoding.EncodeToString(data)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete the entry for key from the keyring.
func (s *KeyringStorage) Delete(key string) error {
	const op = "KeyringStorage.Delete"
	err := keyring.Delete(s.service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
