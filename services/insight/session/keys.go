// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import "strings"

// Key namespace. Every key belonging to one session starts with
// "session:{sid}:" so diagnostics and cleanup can find a session's
// full footprint with a single prefix scan.
const (
	keyPrefix        = "session:"
	suffixTables     = ":tables"
	suffixMeta       = ":meta"
	suffixGraph      = ":graph"
	suffixContext    = ":context"
	suffixVersionSep = ":version:"
)

func tablesKey(sid string) string { return keyPrefix + sid + suffixTables }

func metaKey(sid string) string { return keyPrefix + sid + suffixMeta }

func graphKey(sid string) string { return keyPrefix + sid + suffixGraph }

func contextKey(sid string) string { return keyPrefix + sid + suffixContext }

func versionKey(sid, vid string) string {
	return keyPrefix + sid + suffixVersionSep + vid
}

// sessionPrefix returns the scan prefix covering every key of one session.
func sessionPrefix(sid string) string { return keyPrefix + sid + ":" }

// MetaKeyPrefix is the scan prefix matching all session metadata keys.
// Used by session listing and the cleanup command.
const MetaKeyPrefix = keyPrefix

// SessionIDFromKey extracts the session id from any session-namespaced
// key, or "" if the key is not in the namespace.
func SessionIDFromKey(key string) string {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return ""
	}
	sid, _, ok := strings.Cut(rest, ":")
	if !ok {
		return ""
	}
	return sid
}

// IsMetaKey reports whether key is a session metadata key.
func IsMetaKey(key string) bool {
	return strings.HasPrefix(key, keyPrefix) && strings.HasSuffix(key, suffixMeta)
}

// IsVersionKey reports whether key is a version payload key.
func IsVersionKey(key string) bool {
	return strings.HasPrefix(key, keyPrefix) && strings.Contains(key, suffixVersionSep)
}
