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

// Package gosink defines the collaborator contracts between changelog sinks,
// durable state storage, and the pipeline driver.
//
// This file contains the primary interfaces for change sources, checkpointed
// sinks, and the durable list state consumed at checkpoint boundaries.
package gosink

import (
	"context"
)

// ListState is an ordered, appendable durable value list. A sink writes its
// in-memory state into a ListState at every checkpoint and reads it back once
// on restore. Implementations live in the state package.
type ListState interface {
	// Get returns all entries in original append order.
	Get(ctx context.Context) ([]string, error)
	// Add appends a single entry.
	Add(ctx context.Context, value string) error
	// AddAll appends all entries, preserving their order.
	AddAll(ctx context.Context, values []string) error
	// Update replaces the entire list with the given entries.
	Update(ctx context.Context, values []string) error
	// Clear removes all entries.
	Clear(ctx context.Context) error
}

// StateStore hands out named ListStates for one task's durable state and
// reports whether the store was restored from a prior snapshot.
type StateStore interface {
	// ListState returns the durable list registered under the given name,
	// creating it empty if it does not exist yet.
	ListState(name string) (ListState, error)
	// Restored reports whether this store carries data from a prior snapshot.
	// When false, sinks initialize with empty state.
	Restored() bool
}

// Outcome is the control result of accepting one change event.
type Outcome int

const (
	// Continue means the event was applied and the stream should keep flowing.
	Continue Outcome = iota
	// Complete means a bounded stream has delivered its expected record count
	// and the task should terminate successfully. It is not an error.
	Complete
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Continue:
		return "CONTINUE"
	case Complete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// ChangeSource delivers change events one at a time in delivery order.
// Implementations return io.EOF when the stream is exhausted.
type ChangeSource interface {
	// Next returns the next change event or io.EOF when no more are available.
	Next(ctx context.Context) (ChangeEvent, error)
	// Close releases any resources held by the source.
	Close() error
}

// ChangelogSink is the exactly-once output stage of a streaming pipeline.
//
// The pipeline driver calls Initialize exactly once at task start, Accept for
// every delivered event, and Snapshot at each checkpoint boundary. Snapshot
// never runs concurrently with Accept for the same sink; the driver guarantees
// a checkpoint barrier excludes concurrent record processing.
type ChangelogSink interface {
	// Initialize restores the sink's local state from the store if it holds a
	// prior snapshot, or starts empty, and publishes the state into the
	// result registry.
	Initialize(ctx context.Context, store StateStore) error
	// Accept applies one change event to local state. A Complete outcome
	// requests clean termination of the task; a non-nil error is a fatal
	// stream-correctness violation and fails the task.
	Accept(ctx context.Context, event ChangeEvent) (Outcome, error)
	// Snapshot rewrites the durable state from current in-memory state, in
	// the same encoding Initialize expects on restore.
	Snapshot(ctx context.Context) error
	// Close releases any resources held by the sink.
	Close() error
}
