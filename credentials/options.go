// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/capauth/jwt"
)

// DefaultStorageKey is the storage key used unless WithStorageKey is given.
const DefaultStorageKey = "credentials"

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

// managerOptions is the set of available options for NewManager.
type managerOptions struct {
	withStorageKey        string
	withNow               func() time.Time
	withLogger            hclog.Logger
	withIDTokenValidation *jwt.ValidatorContext
	withBiometricSession  *BiometricSession
}

func managerDefaults() managerOptions {
	return managerOptions{
		withStorageKey:       DefaultStorageKey,
		withNow:              time.Now,
		withLogger:           hclog.NewNullLogger(),
		withBiometricSession: DefaultBiometricSession(),
	}
}

func getManagerOpts(opt ...Option) managerOptions {
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// credentialsOptions is the set of available options for the Manager's
// Credentials, Renew, SSOCredentials and Revoke.
type credentialsOptions struct {
	withScope      string
	withMinTTL     time.Duration
	withParameters map[string]string
}

func credentialsDefaults() credentialsOptions {
	return credentialsOptions{}
}

func getCredentialsOpts(opt ...Option) credentialsOptions {
	opts := credentialsDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithStorageKey provides an optional storage key, allowing several sets of
// credentials in one Storage.
//
// Valid for: NewManager
func WithStorageKey(key string) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && key != "" {
			o.withStorageKey = key
		}
	}
}

// WithNow provides an optional func for determining what the current time
// is.
//
// Valid for: NewManager
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && now != nil {
			o.withNow = now
		}
	}
}

// WithLogger provides an optional logger.
//
// Valid for: NewManager
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithIDTokenValidation makes the Manager validate id_tokens returned by a
// refresh against vctx. The nonce, max_age and azp checks are skipped since
// a refresh isn't a new authentication.
//
// Valid for: NewManager
func WithIDTokenValidation(vctx *jwt.ValidatorContext) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withIDTokenValidation = vctx
		}
	}
}

// WithBiometricSession provides an optional session in place of the
// process-wide DefaultBiometricSession.
//
// Valid for: NewManager
func WithBiometricSession(s *BiometricSession) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && s != nil {
			o.withBiometricSession = s
		}
	}
}

// WithScope requests scope. Credentials refreshes when the stored
// credentials weren't granted every requested scope.
//
// Valid for: Manager.Credentials and Manager.Renew
func WithScope(scope string) Option {
	return func(o interface{}) {
		if o, ok := o.(*credentialsOptions); ok {
			o.withScope = scope
		}
	}
}

// WithMinTTL requires the returned access token to stay valid for at least
// d.
//
// Valid for: Manager.Credentials
func WithMinTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*credentialsOptions); ok {
			o.withMinTTL = d
		}
	}
}

// WithParameters provides optional parameters added to the request body.
//
// Valid for: Manager.Credentials, Manager.Renew, Manager.SSOCredentials and
// Manager.Revoke
func WithParameters(params map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*credentialsOptions); ok {
			o.withParameters = params
		}
	}
}
