// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

const contentURIScheme = "mxc://"

// ContentURI is a parsed Matrix content URI ("mxc://server/mediaID").
// Avatars are stored as content URIs in m.room.member events and must
// be turned into HTTP URLs through the homeserver's media repository
// before display.
type ContentURI struct {
	server  string
	mediaID string
}

// ParseContentURI validates an mxc:// URI. The media ID must be a single
// non-empty path segment.
func ParseContentURI(raw string) (ContentURI, error) {
	if !strings.HasPrefix(raw, contentURIScheme) {
		return ContentURI{}, fmt.Errorf("content URI must start with %q: %q", contentURIScheme, raw)
	}
	rest := raw[len(contentURIScheme):]
	server, mediaID, found := strings.Cut(rest, "/")
	if !found {
		return ContentURI{}, fmt.Errorf("content URI missing media ID: %q", raw)
	}
	if err := validateServer(server); err != nil {
		return ContentURI{}, fmt.Errorf("content URI %q: %w", raw, err)
	}
	if mediaID == "" || strings.ContainsAny(mediaID, "/?#") {
		return ContentURI{}, fmt.Errorf("content URI has invalid media ID: %q", raw)
	}
	return ContentURI{server: server, mediaID: mediaID}, nil
}

// Server returns the origin server of the media.
func (c ContentURI) Server() string { return c.server }

// MediaID returns the server-local media identifier.
func (c ContentURI) MediaID() string { return c.mediaID }

// IsZero reports whether the ContentURI is the zero value.
func (c ContentURI) IsZero() bool { return c.server == "" }

// String returns the mxc:// form.
func (c ContentURI) String() string {
	if c.IsZero() {
		return ""
	}
	return contentURIScheme + c.server + "/" + c.mediaID
}
