// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package settingsui is a terminal panel for the local user's color.
//
// The panel shows a text input seeded with the account color, a swatch
// previewing the last hex color typed, and the space the daemon
// currently treats as "current". Save stores the color in account
// data; Publish writes it into the current space's state so other
// members see it. Tab cycles the current space through home and the
// joined spaces, which sets the daemon's ambient label.
//
// The model only talks to a [Backend]; in practice that is a
// facade.Remote connected to the daemon socket.
package settingsui
