//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoSink.
//
// GoSink is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoSink is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoSink. If not, see https://www.gnu.org/licenses/.

package sink

import (
	"errors"
	"fmt"
)

// Fatal stream-correctness violations. These are never retried and never
// swallowed: they signal a bug in the upstream changelog, not a transient
// condition, and surface as a hard failure of the task. Restart-from-checkpoint
// is the recovery mechanism.
var (
	// ErrNonInsertEvent marks a non-insert event delivered to an append-only sink.
	ErrNonInsertEvent = errors.New("append-only sink received a non-insert event")
	// ErrKeyNotFound marks a delete or update-before for a key that was never
	// inserted, or was already removed.
	ErrKeyNotFound = errors.New("tried to delete a key that wasn't inserted first")
	// ErrRowNotFound marks a retraction of a row with no active occurrence.
	ErrRowNotFound = errors.New("tried to retract a row that wasn't inserted first")
	// ErrCorruptState marks a restored key/value sequence with an odd number
	// of entries.
	ErrCorruptState = errors.New("restored upsert state holds an odd number of entries")
)

// SinkError wraps sink failures with context about the operation and table.
type SinkError struct {
	Op    string // The operation being performed (e.g., "accept", "restore", "snapshot")
	Table string // The logical table the sink writes
	Err   error  // The underlying error
}

// Error returns the error string for SinkError.
func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s [%s]: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error for SinkError.
func (e *SinkError) Unwrap() error {
	return e.Err
}
