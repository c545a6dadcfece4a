// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settingsui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the panel's key bindings.
type KeyMap struct {
	Save      key.Binding
	Publish   key.Binding
	NextSpace key.Binding
	PrevSpace key.Binding
	Quit      key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Save: key.NewBinding(
		key.WithKeys("ctrl+s", "enter"),
		key.WithHelp("C-s", "save"),
	),
	Publish: key.NewBinding(
		key.WithKeys("ctrl+p"),
		key.WithHelp("C-p", "publish to current space"),
	),
	NextSpace: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next space"),
	),
	PrevSpace: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("S-tab", "previous space"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "quit"),
	),
}
