// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"context"
	"sync"
)

// Result is the outcome of a transaction. It is resolved exactly once;
// later resolutions are ignored.
type Result[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newResult[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// resolve sets the outcome and reports whether this call set it.
func (r *Result[T]) resolve(v T, err error) bool {
	resolved := false
	r.once.Do(func() {
		r.val, r.err = v, err
		resolved = true
		close(r.done)
	})
	return resolved
}

// Done is closed once the result is resolved.
func (r *Result[T]) Done() <-chan struct{} { return r.done }

// Resolved reports whether the result is available.
func (r *Result[T]) Resolved() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the result is resolved or ctx is done.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the error of a resolved result, nil otherwise.
func (r *Result[T]) Err() error {
	if !r.Resolved() {
		return nil
	}
	return r.err
}
