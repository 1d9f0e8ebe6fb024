// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session version engine.
var (
	// ErrSessionNotFound indicates the session's metadata key has
	// expired or never existed.
	ErrSessionNotFound = errors.New("session not found or expired")

	// ErrVersionNotFound indicates a version id absent from the
	// session (never created, pruned, or expired).
	ErrVersionNotFound = errors.New("version does not exist or has expired")

	// ErrVersionExists indicates an attempt to overwrite an existing
	// version payload. Versions are immutable once written, so this is
	// a logic error in the caller, not a storage condition.
	ErrVersionExists = errors.New("version already exists")

	// ErrGraphInvariant indicates a defensive DAG check failed
	// (duplicate node id, missing parent, cycle). Treated as a fatal
	// bug signal: logged and the operation aborted, never repaired
	// silently.
	ErrGraphInvariant = errors.New("version graph invariant violation")
)

// errGraphf wraps ErrGraphInvariant with detail.
func errGraphf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrGraphInvariant}, args...)...)
}
