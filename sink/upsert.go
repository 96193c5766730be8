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
	"strconv"

	"github.com/aaronlmathis/gosink"
	"github.com/aaronlmathis/gosink/registry"
)

// UpsertOption represents a configuration function for KeyedUpsertSink.
type UpsertOption func(*upsertOptions)

type upsertOptions struct {
	expectedRecords int
}

// WithExpectedRecords configures a bounded stream: once the sink has accepted
// the given number of events it signals completion instead of continuing.
// This lets a harness terminate a logically infinite source deterministically.
// The default, Unbounded, disables the check.
func WithExpectedRecords(n int) UpsertOption {
	return func(opts *upsertOptions) {
		opts.expectedRecords = n
	}
}

// KeyedUpsertSink materializes a key-to-latest-row view of a changelog
// stream. Insert and UpdateAfter set the key's row; UpdateBefore and Delete
// remove it, failing fatally if the key is absent.
type KeyedUpsertSink struct {
	exactlyOnceBase

	keyIndices []int
	expected   int

	upsertState gosink.ListState
	countState  gosink.ListState
	received    int
}

// NewKeyedUpsertSink creates an upsert sink for the given table and task.
// keyIndices selects the row positions that form the unique key.
func NewKeyedUpsertSink(table string, taskID int, reg *registry.Registry, keyIndices []int, options ...UpsertOption) *KeyedUpsertSink {
	opts := upsertOptions{expectedRecords: Unbounded}
	for _, option := range options {
		option(&opts)
	}
	return &KeyedUpsertSink{
		exactlyOnceBase: exactlyOnceBase{table: table, taskID: taskID, registry: reg},
		keyIndices:      append([]int(nil), keyIndices...),
		expected:        opts.expectedRecords,
	}
}

// ReceivedCount returns the number of events accepted since task start plus
// however many were restored from the durable snapshot.
func (s *KeyedUpsertSink) ReceivedCount() int {
	return s.received
}

// Initialize implements the gosink.ChangelogSink interface.
//
// The durable upsert state stores key and value as adjacent entries; an odd
// leftover entry after pairing is fatal corruption, not a transient error.
func (s *KeyedUpsertSink) Initialize(ctx context.Context, store gosink.StateStore) error {
	if err := s.initialize(ctx, store, registry.KindUpsert); err != nil {
		return err
	}

	upsertState, err := store.ListState(upsertStateName)
	if err != nil {
		return &SinkError{Op: "initialize", Table: s.table, Err: err}
	}
	s.upsertState = upsertState

	countState, err := store.ListState(receivedNumState)
	if err != nil {
		return &SinkError{Op: "initialize", Table: s.table, Err: err}
	}
	s.countState = countState

	if !store.Restored() {
		return nil
	}

	entries, err := upsertState.Get(ctx)
	if err != nil {
		return &SinkError{Op: "restore", Table: s.table, Err: err}
	}
	if len(entries)%2 != 0 {
		return &SinkError{
			Op:    "restore",
			Table: s.table,
			Err:   fmt.Errorf("%w: %d entries", ErrCorruptState, len(entries)),
		}
	}
	mapping := make(map[string]string, len(entries)/2)
	for i := 0; i < len(entries); i += 2 {
		mapping[entries[i]] = entries[i+1]
	}
	s.slot.ResetUpsert(mapping)

	counts, err := countState.Get(ctx)
	if err != nil {
		return &SinkError{Op: "restore", Table: s.table, Err: err}
	}
	// Should only be a single entry.
	for _, entry := range counts {
		n, err := strconv.Atoi(entry)
		if err != nil {
			return &SinkError{
				Op:    "restore",
				Table: s.table,
				Err:   fmt.Errorf("invalid received count %q: %w", entry, err),
			}
		}
		s.received = n
	}
	return nil
}

// Accept implements the gosink.ChangelogSink interface.
func (s *KeyedUpsertSink) Accept(ctx context.Context, event gosink.ChangeEvent) (gosink.Outcome, error) {
	s.slot.AppendRaw(event.Rendering())

	key := event.Row.Project(s.keyIndices).String()
	switch event.Kind {
	case gosink.Insert, gosink.UpdateAfter:
		s.slot.PutUpsert(key, event.Row.String())
	default:
		if _, ok := s.slot.RemoveUpsert(key); !ok {
			return gosink.Continue, &SinkError{
				Op:    "accept",
				Table: s.table,
				Err:   fmt.Errorf("%w: key (%s)", ErrKeyNotFound, key),
			}
		}
	}

	s.received++
	if s.expected != Unbounded && s.received == s.expected {
		return gosink.Complete, nil
	}
	return gosink.Continue, nil
}

// Snapshot implements the gosink.ChangelogSink interface.
//
// Key/value pairs are written as adjacent entries, the same interleaved
// encoding Initialize decodes on restore.
func (s *KeyedUpsertSink) Snapshot(ctx context.Context) error {
	if err := s.snapshotRaw(ctx); err != nil {
		return err
	}

	mapping := s.slot.UpsertCopy()
	entries := make([]string, 0, len(mapping)*2)
	for key, value := range mapping {
		entries = append(entries, key, value)
	}
	if err := s.upsertState.Clear(ctx); err != nil {
		return &SinkError{Op: "snapshot", Table: s.table, Err: err}
	}
	if err := s.upsertState.AddAll(ctx, entries); err != nil {
		return &SinkError{Op: "snapshot", Table: s.table, Err: err}
	}

	if err := s.countState.Update(ctx, []string{strconv.Itoa(s.received)}); err != nil {
		return &SinkError{Op: "snapshot", Table: s.table, Err: err}
	}
	return nil
}

// Close implements the gosink.ChangelogSink interface.
func (s *KeyedUpsertSink) Close() error {
	return nil
}
