// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/capauth/oidc"
)

const testRedirectURL = "https://127.0.0.1/callback"

// testUserAgent records what it presented and how often it was finished.
type testUserAgent struct {
	mu       sync.Mutex
	started  []string
	finished []error
	startErr error

	// client, when set, requests the presented url and records the
	// redirect location.
	client   *http.Client
	location string
}

func (ua *testUserAgent) Start(ctx context.Context, u string) error {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	ua.started = append(ua.started, u)
	if ua.startErr != nil {
		return ua.startErr
	}
	if ua.client != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := ua.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		ua.location = resp.Header.Get("Location")
	}
	return nil
}

func (ua *testUserAgent) Finish(err error) {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	ua.finished = append(ua.finished, err)
}

func (ua *testUserAgent) finishCount() int {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	return len(ua.finished)
}

func (ua *testUserAgent) lastStarted() string {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	if len(ua.started) == 0 {
		return ""
	}
	return ua.started[len(ua.started)-1]
}

func (ua *testUserAgent) redirectLocation() string {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	return ua.location
}

// newBrowserUserAgent returns a user agent which sends the authorize
// request to the test provider without following its redirect.
func newBrowserUserAgent(tp *oidc.TestProvider) *testUserAgent {
	return &testUserAgent{
		client: &http.Client{
			Transport: tp.HTTPClient().Transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// testGrant returns canned credentials and records the callback items.
type testGrant struct {
	mu    sync.Mutex
	creds *oidc.Credentials
	err   error
	items []map[string]string
	block chan struct{}
}

func (g *testGrant) Credentials(ctx context.Context, items map[string]string) (*oidc.Credentials, error) {
	g.mu.Lock()
	g.items = append(g.items, items)
	block := g.block
	g.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.creds, g.err
}

func (g *testGrant) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testWebAuth(t *testing.T, tp *oidc.TestProvider, ua UserAgent, opt ...Option) *WebAuth {
	t.Helper()
	p, err := oidc.NewProvider(tp.Config(testRedirectURL))
	require.NoError(t, err)
	opt = append([]Option{WithStore(NewStore())}, opt...)
	w, err := NewWebAuth(p, ua, opt...)
	require.NoError(t, err)
	return w
}
