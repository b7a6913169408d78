// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"

	"github.com/hashicorp/capauth/jwt"
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

// configOptions is the set of available options for NewConfig
type configOptions struct {
	withScopes       []string
	withAudience     string
	withOrganization string
	withLeeway       time.Duration
	withMaxAge       *time.Duration
	withProviderCA   string
	withEndpoints    *Endpoints
}

func configDefaults() configOptions {
	return configOptions{
		withLeeway: jwt.DefaultLeeway,
	}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// providerOptions is the set of available options for NewProvider
type providerOptions struct {
	withHTTPClient *http.Client
	withLogger     hclog.Logger
	withNow        func() time.Time
}

func providerDefaults() providerOptions {
	return providerOptions{
		withLogger: hclog.NewNullLogger(),
		withNow:    time.Now,
	}
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// authURLOptions is the set of available options for Provider.AuthURL
type authURLOptions struct {
	withScopes       []string
	withAudience     string
	withOrganization string
	withInvitation   string
	withConnection   string
	withMaxAge       *time.Duration
	withResponseType ResponseType
	withVerifier     CodeVerifier
	withUILocales    []language.Tag
	withParameters   map[string]string
	withRedirectURL  string
}

func authURLDefaults() authURLOptions {
	return authURLOptions{
		withResponseType: ResponseTypeCode,
	}
}

func getAuthURLOpts(opt ...Option) authURLOptions {
	opts := authURLDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// grantOptions is the set of available options for the grant handlers
type grantOptions struct {
	withNow       func() time.Time
	withLogger    hclog.Logger
	withValidator IDTokenValidatorFunc
}

func grantDefaults() grantOptions {
	return grantOptions{
		withNow:       time.Now,
		withLogger:    hclog.NewNullLogger(),
		withValidator: defaultIDTokenValidator,
	}
}

func getGrantOpts(opt ...Option) grantOptions {
	opts := grantDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes for: NewConfig,
// Provider.AuthURL
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withScopes = scopes
		case *authURLOptions:
			v.withScopes = scopes
		}
	}
}

// WithAudience provides an optional API audience for: NewConfig,
// Provider.AuthURL
func WithAudience(aud string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withAudience = aud
		case *authURLOptions:
			v.withAudience = aud
		}
	}
}

// WithOrganization provides an optional organization for: NewConfig,
// Provider.AuthURL
func WithOrganization(org string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withOrganization = org
		case *authURLOptions:
			v.withOrganization = org
		}
	}
}

// WithMaxAge provides an optional max_age for: NewConfig, Provider.AuthURL
func WithMaxAge(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withMaxAge = &d
		case *authURLOptions:
			v.withMaxAge = &d
		}
	}
}

// WithLeeway provides an optional id_token clock skew for NewConfig
func WithLeeway(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLeeway = d
		}
	}
}

// WithProviderCA provides an optional CA cert for NewConfig
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithEndpoints overrides the endpoints NewConfig derives from the issuer.
func WithEndpoints(e Endpoints) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withEndpoints = &e
		}
	}
}

// WithHTTPClient provides an optional http client for NewProvider
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithLogger provides an optional logger for: NewProvider, NewPKCEGrant,
// NewImplicitGrant
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *providerOptions:
			v.withLogger = l
		case *grantOptions:
			v.withLogger = l
		}
	}
}

// WithNow provides an optional clock for: NewProvider, NewPKCEGrant,
// NewImplicitGrant
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *providerOptions:
			v.withNow = now
		case *grantOptions:
			v.withNow = now
		}
	}
}

// WithIDTokenValidator replaces the id_token validation used by the grant
// handlers.
func WithIDTokenValidator(fn IDTokenValidatorFunc) Option {
	return func(o interface{}) {
		if o, ok := o.(*grantOptions); ok && fn != nil {
			o.withValidator = fn
		}
	}
}

// WithInvitation provides an organization invitation ticket for
// Provider.AuthURL
func WithInvitation(ticket string) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withInvitation = ticket
		}
	}
}

// WithConnection provides an optional connection name for Provider.AuthURL
func WithConnection(conn string) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withConnection = conn
		}
	}
}

// WithResponseType provides the response_type for Provider.AuthURL. The
// default is ResponseTypeCode.
func WithResponseType(rt ResponseType) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withResponseType = rt
		}
	}
}

// WithPKCE adds the code_challenge of v to Provider.AuthURL
func WithPKCE(v CodeVerifier) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withVerifier = v
		}
	}
}

// WithUILocales provides the optional ui_locales for Provider.AuthURL
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withUILocales = locales
		}
	}
}

// WithParameters provides additional authorize parameters for
// Provider.AuthURL. They override every parameter except state.
func WithParameters(params map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withParameters = params
		}
	}
}

// WithRedirectURL overrides the configured redirect URL for Provider.AuthURL
func WithRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withRedirectURL = u
		}
	}
}
