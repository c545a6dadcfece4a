// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package prefs stores per-user display preferences in Matrix.
//
// A preference [Blob] is a flat JSON object; "color" is the only key
// with a defined meaning, but every other key is carried through
// writes untouched. Blobs live in one of two places, chosen by a
// [scope.Scope]:
//
//   - Room scope: a state event in that room with the preference event
//     type (default "dev.mates.user_prefs") and state key = the subject
//     user ID. Anyone in the room can read it; the homeserver decides
//     who may write it.
//   - Global scope: the local user's account data of the same type.
//     The subject argument is ignored; callers only write their own.
//
// Writes shallow-merge: the stored blob is read from the host client's
// mirror, the partial blob's keys overwrite it, and the result is sent
// as one write. There is no locking or versioning. Two writers racing
// on the same (scope, subject) can each read the same base and the
// later send wins, dropping keys only the earlier one set.
//
// Reads never fail for absent, unreadable, or malformed content; they
// return an empty blob. The only read error is [ErrNotReady], returned
// when the context ends before the client handle resolves.
package prefs
