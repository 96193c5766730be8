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
	"context"
	"fmt"

	"github.com/aaronlmathis/gosink"
	"github.com/aaronlmathis/gosink/registry"
)

const retractStateName = "sink-retract-results"

// RetractingSink materializes the multiset of currently active rows.
// Insert and UpdateAfter add one occurrence of the row; UpdateBefore and
// Delete remove one matching occurrence, failing fatally if none is active.
// Duplicate identical rows are distinct occurrences.
type RetractingSink struct {
	exactlyOnceBase

	retractState gosink.ListState
}

// NewRetractingSink creates a retract-set sink for the given table and task.
func NewRetractingSink(table string, taskID int, reg *registry.Registry) *RetractingSink {
	return &RetractingSink{
		exactlyOnceBase: exactlyOnceBase{table: table, taskID: taskID, registry: reg},
	}
}

// Initialize implements the gosink.ChangelogSink interface.
func (s *RetractingSink) Initialize(ctx context.Context, store gosink.StateStore) error {
	if err := s.initialize(ctx, store, registry.KindRetract); err != nil {
		return err
	}

	retractState, err := store.ListState(retractStateName)
	if err != nil {
		return &SinkError{Op: "initialize", Table: s.table, Err: err}
	}
	s.retractState = retractState

	if !store.Restored() {
		return nil
	}
	restored, err := retractState.Get(ctx)
	if err != nil {
		return &SinkError{Op: "restore", Table: s.table, Err: err}
	}
	s.slot.ResetRetract(restored)
	return nil
}

// Accept implements the gosink.ChangelogSink interface.
func (s *RetractingSink) Accept(ctx context.Context, event gosink.ChangeEvent) (gosink.Outcome, error) {
	s.slot.AppendRaw(event.Rendering())

	rendering := event.Row.String()
	switch event.Kind {
	case gosink.Insert, gosink.UpdateAfter:
		s.slot.AddRetract(rendering)
	default:
		if !s.slot.RemoveRetract(rendering) {
			return gosink.Continue, &SinkError{
				Op:    "accept",
				Table: s.table,
				Err:   fmt.Errorf("%w: row (%s)", ErrRowNotFound, rendering),
			}
		}
	}
	return gosink.Continue, nil
}

// Snapshot implements the gosink.ChangelogSink interface.
func (s *RetractingSink) Snapshot(ctx context.Context) error {
	if err := s.snapshotRaw(ctx); err != nil {
		return err
	}
	if err := s.retractState.Clear(ctx); err != nil {
		return &SinkError{Op: "snapshot", Table: s.table, Err: err}
	}
	if err := s.retractState.AddAll(ctx, s.slot.RetractCopy()); err != nil {
		return &SinkError{Op: "snapshot", Table: s.table, Err: err}
	}
	return nil
}

// Close implements the gosink.ChangelogSink interface.
func (s *RetractingSink) Close() error {
	return nil
}
