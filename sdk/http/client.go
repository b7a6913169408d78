// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
)

var (
	ErrInvalidCertificatePem = errors.New("invalid certificate PEM")
	ErrUnexpectedStatus      = errors.New("unexpected http status")
)

// maxBodySize bounds every response body read by this package.
const maxBodySize = 1 << 20

// DefaultMaxTries is used by GetJSON when maxTries is zero.
const DefaultMaxTries = 3

// NewClient creates a new http client which will use the optional CA
// certificate PEM if provided, otherwise it will use the installed system CA
// chain.
func NewClient(caPEM string) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: tr,
	}, nil
}

// ClientContext returns a new Context that carries the provided HTTP client.
// This sets the same context key used by the github.com/coreos/go-oidc and
// golang.org/x/oauth2 packages, so the returned context works for those
// packages as well.
func ClientContext(ctx context.Context, client *http.Client) context.Context {
	return oidc.ClientContext(ctx, client)
}

// StatusError is returned when a response has a non 2xx status. Body holds
// the (bounded) response body.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// GetJSON issues a GET for u and decodes the JSON response into out.
// Transport errors, 429 and 5xx responses are retried with exponential
// backoff, up to maxTries attempts.
func GetJSON(ctx context.Context, client *http.Client, u string, out interface{}, maxTries uint) error {
	const op = "http.GetJSON"
	if client == nil {
		return fmt.Errorf("%s: client is nil", op)
	}
	if maxTries == 0 {
		maxTries = DefaultMaxTries
	}
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: body})
		}
		return body, nil
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(maxTries),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: unable to decode response: %w", op, err)
	}
	return nil
}

// PostForm posts a url encoded form to u and returns the status code and the
// (bounded) body. Non 2xx responses are not treated as errors; callers
// interpret the body. Requests are never retried.
func PostForm(ctx context.Context, client *http.Client, u string, form url.Values, headers map[string]string) (int, []byte, error) {
	const op = "http.PostForm"
	if client == nil {
		return 0, nil, fmt.Errorf("%s: client is nil", op)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: unable to read response: %w", op, err)
	}
	return resp.StatusCode, body, nil
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}
