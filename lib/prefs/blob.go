// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prefs

import (
	"encoding/json"
	"fmt"
	"maps"
)

// KeyColor is the blob key holding the display color. Values are
// stored as given; any CSS color string is accepted.
const KeyColor = "color"

// Blob is one (scope, subject) preference mapping.
type Blob map[string]any

// Merge returns a new blob holding b's keys overwritten by partial's.
// Neither input is modified.
func (b Blob) Merge(partial Blob) Blob {
	merged := make(Blob, len(b)+len(partial))
	maps.Copy(merged, b)
	maps.Copy(merged, partial)
	return merged
}

// Color returns the color key when it is a non-empty string.
func (b Blob) Color() (string, bool) {
	color, ok := b[KeyColor].(string)
	return color, ok && color != ""
}

// decodeBlob parses stored content. Anything that is not a JSON object
// yields ErrMalformedContent.
func decodeBlob(raw json.RawMessage) (Blob, error) {
	if len(raw) == 0 {
		return Blob{}, nil
	}
	var blob Blob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	// JSON null decodes into a nil map without error.
	if blob == nil {
		return Blob{}, fmt.Errorf("%w: content is null", ErrMalformedContent)
	}
	return blob, nil
}
