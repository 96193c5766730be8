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

// Package sink implements the exactly-once changelog sinks.
//
// Every sink shares the same lifecycle: initialize-or-restore from a durable
// state store, accumulate change events into local state, and snapshot back
// into the store at checkpoint boundaries. The sinks differ only in their
// reconciliation policy: append-only, keyed upsert, or retract set.
//
// Each sink instance is owned by exactly one task and is not safe for
// concurrent use; the result registry it publishes into is the shared,
// synchronized surface.
package sink

import (
	"context"
	"fmt"

	"github.com/aaronlmathis/gosink"
	"github.com/aaronlmathis/gosink/registry"
)

// Named durable states. The raw log is shared by all sink kinds; the upsert
// sink adds two more.
const (
	rawStateName     = "sink-results"
	upsertStateName  = "sink-upsert-results"
	receivedNumState = "sink-received-num"
)

// Unbounded disables the expected-record completion check.
const Unbounded = -1

// exactlyOnceBase carries the lifecycle shared by all checkpointed sinks:
// the raw append-only audit log, its durable list state, and the registry
// slot the local state is published through.
type exactlyOnceBase struct {
	table    string
	taskID   int
	registry *registry.Registry

	rawState gosink.ListState
	slot     *registry.TaskSlot
}

// initialize restores the raw log from the store if it holds prior data and
// binds a fresh registry slot for this task incarnation.
func (b *exactlyOnceBase) initialize(ctx context.Context, store gosink.StateStore, kind registry.Kind) error {
	rawState, err := store.ListState(rawStateName)
	if err != nil {
		return &SinkError{Op: "initialize", Table: b.table, Err: err}
	}
	b.rawState = rawState

	var restored []string
	if store.Restored() {
		restored, err = rawState.Get(ctx)
		if err != nil {
			return &SinkError{Op: "restore", Table: b.table, Err: err}
		}
	}

	b.slot = b.registry.Bind(b.table, b.taskID, kind)
	b.slot.ResetRaw(restored)
	return nil
}

// snapshotRaw rewrites the raw log's durable state from the current local log.
func (b *exactlyOnceBase) snapshotRaw(ctx context.Context) error {
	if err := b.rawState.Clear(ctx); err != nil {
		return &SinkError{Op: "snapshot", Table: b.table, Err: err}
	}
	if err := b.rawState.AddAll(ctx, b.slot.RawCopy()); err != nil {
		return &SinkError{Op: "snapshot", Table: b.table, Err: err}
	}
	return nil
}

// AppendingSink accepts insert-only changelog streams. Any other event kind
// is a fatal stream-correctness violation and leaves no partial mutation.
type AppendingSink struct {
	exactlyOnceBase
}

// NewAppendingSink creates an append-only sink for the given table and task.
func NewAppendingSink(table string, taskID int, reg *registry.Registry) *AppendingSink {
	return &AppendingSink{
		exactlyOnceBase: exactlyOnceBase{table: table, taskID: taskID, registry: reg},
	}
}

// Initialize implements the gosink.ChangelogSink interface.
func (s *AppendingSink) Initialize(ctx context.Context, store gosink.StateStore) error {
	return s.initialize(ctx, store, registry.KindAppend)
}

// Accept implements the gosink.ChangelogSink interface.
func (s *AppendingSink) Accept(ctx context.Context, event gosink.ChangeEvent) (gosink.Outcome, error) {
	if event.Kind != gosink.Insert {
		return gosink.Continue, &SinkError{
			Op:    "accept",
			Table: s.table,
			Err:   fmt.Errorf("%w: got %s", ErrNonInsertEvent, event.Kind),
		}
	}
	s.slot.AppendRaw(event.Rendering())
	return gosink.Continue, nil
}

// Snapshot implements the gosink.ChangelogSink interface.
func (s *AppendingSink) Snapshot(ctx context.Context) error {
	return s.snapshotRaw(ctx)
}

// Close implements the gosink.ChangelogSink interface.
func (s *AppendingSink) Close() error {
	return nil
}
