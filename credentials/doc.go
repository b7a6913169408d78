// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package credentials persists oidc.Credentials and hands them out through a
Manager, which refreshes them with the stored refresh token when they
expire. Credentials are kept in a Storage: MemoryStorage for tests and
short lived processes, KeyringStorage for the operating system's keyring.

A Manager can gate access behind a BiometricPrompt. The BiometricPolicy
decides how long a successful authentication is reused; the time of the last
authentication is kept in a BiometricSession shared by every Manager of the
process.
*/
package credentials
