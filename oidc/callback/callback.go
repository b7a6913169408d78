// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/capauth/oidc"
	"github.com/hashicorp/capauth/oidc/transaction"
)

// Handler creates a callback handler which resumes the current transaction
// of s with the request's url and waits for the transaction to resolve.
// Parameters posted in the request body (response_mode=form_post) are
// handled like query parameters.
//
// The SuccessResponseFunc is used to create a response when the transaction
// succeeds. The ErrorResponseFunc is used to create a response when the
// callback isn't for the current transaction or the transaction fails.
func Handler(s *transaction.Store, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.Handler"
	switch {
	case s == nil:
		return nil, fmt.Errorf("%s: transaction store is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			eFn("", nil, fmt.Errorf("%s: unable to parse callback: %w: %w", op, oidc.ErrInvalidParameter, err), w, req)
			return
		}
		reqState := req.Form.Get("state")

		t, resumed := s.ResumeTransaction(callbackURL(req))
		switch {
		case t == nil:
			eFn(reqState, nil, fmt.Errorf("%s: no authentication attempt is waiting: %w", op, oidc.ErrNotFound), w, req)
			return
		case !resumed:
			eFn(reqState, nil, fmt.Errorf("%s: callback doesn't belong to the current authentication attempt: %w", op, oidc.ErrNotFound), w, req)
			return
		}

		select {
		case <-t.Done():
		case <-req.Context().Done():
			eFn(reqState, nil, fmt.Errorf("%s: %w", op, req.Context().Err()), w, req)
			return
		}
		if err := t.Err(); err != nil {
			var respErr *oidc.AuthenticationError
			if !errors.As(err, &respErr) {
				respErr = nil
			}
			eFn(reqState, respErr, err, w, req)
			return
		}
		sFn(reqState, w, req)
	}, nil
}

// callbackURL rebuilds the url the browser was redirected to, with the
// posted parameters added to the query.
func callbackURL(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     req.Host,
		Path:     req.URL.Path,
		RawQuery: req.Form.Encode(),
	}
	return u.String()
}
