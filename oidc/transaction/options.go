// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transaction

import (
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/capauth/oidc"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// transactionOptions is the set of available options for the transaction
// constructors
type transactionOptions struct {
	withLogger    hclog.Logger
	withUserAgent UserAgent
	withState     string
	withParams    map[string]string
}

func transactionDefaults() transactionOptions {
	return transactionOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getTransactionOpts(opt ...Option) transactionOptions {
	opts := transactionDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// webAuthOptions is the set of available options for NewWebAuth
type webAuthOptions struct {
	withLogger             hclog.Logger
	withStore              *Store
	withChallengeGenerator oidc.ChallengeGenerator
	withGrantOptions       []oidc.Option
}

func webAuthDefaults() webAuthOptions {
	return webAuthOptions{
		withLogger:             hclog.NewNullLogger(),
		withStore:              DefaultStore(),
		withChallengeGenerator: oidc.DefaultChallengeGenerator,
	}
}

func getWebAuthOpts(opt ...Option) webAuthOptions {
	opts := webAuthDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// startOptions is the set of available options for the WebAuth operations
type startOptions struct {
	withState          string
	withNonce          string
	withResponseType   oidc.ResponseType
	withRedirectURL    string
	withInvitationURL  string
	withFederated      bool
	withParams         map[string]string
	withAuthURLOptions []oidc.Option
}

func startDefaults() startOptions {
	return startOptions{
		withResponseType: oidc.ResponseTypeCode,
	}
}

func getStartOpts(opt ...Option) startOptions {
	opts := startDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: NewWebAuth, the transaction
// constructors
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *transactionOptions:
			v.withLogger = l
		case *webAuthOptions:
			v.withLogger = l
		}
	}
}

// WithUserAgent provides the user agent a transaction releases once it's
// resolved.
func WithUserAgent(ua UserAgent) Option {
	return func(o interface{}) {
		if o, ok := o.(*transactionOptions); ok {
			o.withUserAgent = ua
		}
	}
}

// WithStore provides the store NewWebAuth registers its transactions with.
// The default is DefaultStore().
func WithStore(s *Store) Option {
	return func(o interface{}) {
		if o, ok := o.(*webAuthOptions); ok && s != nil {
			o.withStore = s
		}
	}
}

// WithChallengeGenerator provides the PKCE verifier generator for NewWebAuth
func WithChallengeGenerator(g oidc.ChallengeGenerator) Option {
	return func(o interface{}) {
		if o, ok := o.(*webAuthOptions); ok && g != nil {
			o.withChallengeGenerator = g
		}
	}
}

// WithGrantOptions provides options for the grant handlers built by
// WebAuth, such as oidc.WithIDTokenValidator or oidc.WithNow.
func WithGrantOptions(opt ...oidc.Option) Option {
	return func(o interface{}) {
		if o, ok := o.(*webAuthOptions); ok {
			o.withGrantOptions = opt
		}
	}
}

// WithState provides the state for: WebAuth.Start, WebAuth.AuthorizeWithPAR,
// NewPARCodeTransaction. A random state is generated for WebAuth.Start by
// default.
func WithState(state string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *startOptions:
			v.withState = state
		case *transactionOptions:
			v.withState = state
		}
	}
}

// WithNonce provides the nonce for WebAuth.Start. A random nonce is
// generated by default.
func WithNonce(nonce string) Option {
	return func(o interface{}) {
		if o, ok := o.(*startOptions); ok {
			o.withNonce = nonce
		}
	}
}

// WithResponseType provides the response type for WebAuth.Start. The default
// is oidc.ResponseTypeCode, which uses PKCE.
func WithResponseType(rt oidc.ResponseType) Option {
	return func(o interface{}) {
		if o, ok := o.(*startOptions); ok {
			o.withResponseType = rt
		}
	}
}

// WithRedirectURL overrides the configured redirect url for: WebAuth.Start,
// WebAuth.AuthorizeWithPAR, WebAuth.ClearSession
func WithRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*startOptions); ok {
			o.withRedirectURL = u
		}
	}
}

// WithInvitationURL provides an organization invitation url for
// WebAuth.Start. It must carry the invitation and organization query
// parameters.
func WithInvitationURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*startOptions); ok {
			o.withInvitationURL = u
		}
	}
}

// WithFederated clears the upstream identity provider's session too, for
// WebAuth.ClearSession
func WithFederated() Option {
	return func(o interface{}) {
		if o, ok := o.(*startOptions); ok {
			o.withFederated = true
		}
	}
}

// WithParameters provides additional request parameters for:
// WebAuth.NativeAuth, NewNativeAuthTransaction
func WithParameters(params map[string]string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *startOptions:
			v.withParams = params
		case *transactionOptions:
			v.withParams = params
		}
	}
}

// WithAuthURLOptions provides options for oidc.Provider.AuthURL such as
// oidc.WithScopes, oidc.WithAudience or oidc.WithConnection, for
// WebAuth.Start
func WithAuthURLOptions(opt ...oidc.Option) Option {
	return func(o interface{}) {
		if o, ok := o.(*startOptions); ok {
			o.withAuthURLOptions = opt
		}
	}
}
