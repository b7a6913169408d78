// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides a callback (in the form of an
http.HandlerFunc) for a loopback redirect url. It routes the provider's
response to the transaction waiting in a transaction.Store and answers the
browser once the transaction is resolved.
*/
package callback
