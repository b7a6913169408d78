// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package transaction drives a single authentication attempt. WebAuth builds
the authorize, PAR or logout url, hands it to a UserAgent and stores the
resulting Transaction in a Store. The redirect which ends the attempt is
passed to Store.Resume; the transaction checks it belongs to the attempt
and resolves its Result exactly once.
*/
package transaction
