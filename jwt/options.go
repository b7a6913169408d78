// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
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

type validatorOptions struct {
	withSignatureVerifier   SignatureVerifier
	withClaimValidator      ClaimValidator
	withNow                 func() time.Time
	withSkipAuthorizedParty bool
	withLogger              hclog.Logger
}

func validatorDefaults() validatorOptions {
	return validatorOptions{
		withNow:    time.Now,
		withLogger: hclog.NewNullLogger(),
	}
}

func getValidatorOpts(opt ...Option) validatorOptions {
	opts := validatorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type signatureOptions struct {
	withLogger hclog.Logger
}

func signatureDefaults() signatureOptions {
	return signatureOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getSignatureOpts(opt ...Option) signatureOptions {
	opts := signatureDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type remoteJWKSOptions struct {
	withCACert     string
	withHTTPClient *http.Client
	withMaxTries   uint
	withLogger     hclog.Logger
}

func remoteJWKSDefaults() remoteJWKSOptions {
	return remoteJWKSOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getRemoteJWKSOpts(opt ...Option) remoteJWKSOptions {
	opts := remoteJWKSDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type cachingJWKSOptions struct {
	withNow func() time.Time
}

func cachingJWKSDefaults() cachingJWKSOptions {
	return cachingJWKSOptions{
		withNow: time.Now,
	}
}

func getCachingJWKSOpts(opt ...Option) cachingJWKSOptions {
	opts := cachingJWKSDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithSignatureVerifier replaces the default RS256 SignatureValidator of an
// IDTokenValidator.
func WithSignatureVerifier(v SignatureVerifier) Option {
	return func(o interface{}) {
		if o, ok := o.(*validatorOptions); ok {
			o.withSignatureVerifier = v
		}
	}
}

// WithClaimValidator replaces the claim validators an IDTokenValidator
// derives from its ValidatorContext.
func WithClaimValidator(v ClaimValidator) Option {
	return func(o interface{}) {
		if o, ok := o.(*validatorOptions); ok {
			o.withClaimValidator = v
		}
	}
}

// WithNow provides an optional clock for: IDTokenValidator, CachingJWKS.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *validatorOptions:
			v.withNow = now
		case *cachingJWKSOptions:
			v.withNow = now
		}
	}
}

// WithSkipAuthorizedParty disables the azp check. Used for id_tokens
// returned by a refresh, which carry no fresh authorization context.
func WithSkipAuthorizedParty() Option {
	return func(o interface{}) {
		if o, ok := o.(*validatorOptions); ok {
			o.withSkipAuthorizedParty = true
		}
	}
}

// WithCACert provides an optional PEM encoded CA certificate for a
// RemoteJWKS.
func WithCACert(caPEM string) Option {
	return func(o interface{}) {
		if o, ok := o.(*remoteJWKSOptions); ok {
			o.withCACert = caPEM
		}
	}
}

// WithHTTPClient provides an optional http client for a RemoteJWKS.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*remoteJWKSOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithMaxTries bounds the attempts a RemoteJWKS makes per fetch.
func WithMaxTries(n uint) Option {
	return func(o interface{}) {
		if o, ok := o.(*remoteJWKSOptions); ok {
			o.withMaxTries = n
		}
	}
}

// WithLogger provides an optional logger for: IDTokenValidator,
// SignatureValidator, RemoteJWKS.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *validatorOptions:
			v.withLogger = l
		case *signatureOptions:
			v.withLogger = l
		case *remoteJWKSOptions:
			v.withLogger = l
		}
	}
}
