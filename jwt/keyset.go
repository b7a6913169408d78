// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	sdkhttp "github.com/hashicorp/capauth/sdk/http"
)

// JWKSFetcher resolves the JSON Web Key Set used to verify id_token
// signatures.
type JWKSFetcher interface {
	FetchJWKS(ctx context.Context) (*JWKS, error)
}

// JWKSFetcherFunc adapts a function to a JWKSFetcher.
type JWKSFetcherFunc func(ctx context.Context) (*JWKS, error)

// FetchJWKS implements JWKSFetcher.
func (f JWKSFetcherFunc) FetchJWKS(ctx context.Context) (*JWKS, error) { return f(ctx) }

// StaticJWKS always returns the same key set.
type StaticJWKS struct {
	Set *JWKS
}

// FetchJWKS implements JWKSFetcher.
func (s StaticJWKS) FetchJWKS(_ context.Context) (*JWKS, error) {
	const op = "StaticJWKS.FetchJWKS"
	if s.Set == nil {
		return nil, fmt.Errorf("%s: key set is nil: %w", op, ErrJWKSFetchFailed)
	}
	return s.Set, nil
}

// RemoteJWKS fetches the key set from a JWKS URL on every call.
type RemoteJWKS struct {
	url      string
	client   *http.Client
	maxTries uint
	logger   hclog.Logger
}

// NewRemoteJWKS returns a fetcher for the key set published at jwksURL. The
// client used to obtain the remote keys will verify server certificates
// using the root certificates provided by WithCACert.
//
// Supported options: WithCACert, WithHTTPClient, WithMaxTries, WithLogger
func NewRemoteJWKS(jwksURL string, opt ...Option) (*RemoteJWKS, error) {
	const op = "jwt.NewRemoteJWKS"
	if jwksURL == "" {
		return nil, fmt.Errorf("%s: jwks URL is empty: %w", op, ErrInvalidParameter)
	}
	opts := getRemoteJWKSOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		var err error
		client, err = sdkhttp.NewClient(opts.withCACert)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &RemoteJWKS{
		url:      jwksURL,
		client:   client,
		maxTries: opts.withMaxTries,
		logger:   opts.withLogger,
	}, nil
}

// URL returns the JWKS URL.
func (r *RemoteJWKS) URL() string { return r.url }

// FetchJWKS implements JWKSFetcher.
func (r *RemoteJWKS) FetchJWKS(ctx context.Context) (*JWKS, error) {
	const op = "RemoteJWKS.FetchJWKS"
	r.logger.Debug("fetching jwks", "url", r.url)
	var set JWKS
	if err := sdkhttp.GetJSON(ctx, r.client, r.url, &set, r.maxTries); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrJWKSFetchFailed, err)
	}
	return &set, nil
}

// CachingJWKS wraps another fetcher and reuses its result for a fixed time.
// Concurrent fetches for an expired cache are collapsed into one.
type CachingJWKS struct {
	fetcher JWKSFetcher
	ttl     time.Duration
	now     func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	cached    *JWKS
	fetchedAt time.Time
}

// NewCachingJWKS returns a fetcher which caches f's key set for ttl.
//
// Supported options: WithNow
func NewCachingJWKS(f JWKSFetcher, ttl time.Duration, opt ...Option) (*CachingJWKS, error) {
	const op = "jwt.NewCachingJWKS"
	switch {
	case f == nil:
		return nil, fmt.Errorf("%s: fetcher is nil: %w", op, ErrNilParameter)
	case ttl <= 0:
		return nil, fmt.Errorf("%s: ttl must be greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getCachingJWKSOpts(opt...)
	return &CachingJWKS{
		fetcher: f,
		ttl:     ttl,
		now:     opts.withNow,
	}, nil
}

// FetchJWKS implements JWKSFetcher.
func (c *CachingJWKS) FetchJWKS(ctx context.Context) (*JWKS, error) {
	c.mu.RLock()
	cached, fetchedAt := c.cached, c.fetchedAt
	c.mu.RUnlock()
	if cached != nil && c.now().Sub(fetchedAt) < c.ttl {
		return cached, nil
	}

	v, err, _ := c.group.Do("jwks", func() (interface{}, error) {
		set, err := c.fetcher.FetchJWKS(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cached, c.fetchedAt = set, c.now()
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*JWKS), nil
}

// Invalidate drops the cached key set.
func (c *CachingJWKS) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.fetchedAt = time.Time{}
}
