// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed stores the Matrix access token at rest with age
// encryption. The `login` command seals a freshly issued token to one
// or more age recipients; the daemon unseals it with the operator's age
// identity file at startup.
//
// Token files may be plain text (a bare access token, for development),
// ASCII-armored age, or binary age. [ReadTokenFile] detects the format.
// Decrypted tokens and identities are returned as *secret.Buffer values
// and never pass through long-lived heap strings.
package sealed
