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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/gosink"
	"github.com/aaronlmathis/gosink/registry"
	"github.com/aaronlmathis/gosink/state"
)

// TestAppendingSink_AcceptsInserts verifies insert events land in the raw log
// with their kind tag.
func TestAppendingSink_AcceptsInserts(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	s := NewAppendingSink("orders", 0, reg)
	require.NoError(t, s.Initialize(ctx, state.NewMemoryStore()))

	outcome, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "a"))
	require.NoError(t, err)
	assert.Equal(t, gosink.Continue, outcome)

	outcome, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 2, "b"))
	require.NoError(t, err)
	assert.Equal(t, gosink.Continue, outcome)

	assert.Equal(t, []string{"+I(1, a)", "+I(2, b)"}, reg.RawResults("orders"))
	assert.Equal(t, []string{"1, a", "2, b"}, reg.Results("orders"))
}

// TestAppendingSink_RejectsNonInsert verifies any non-insert kind fails
// fatally and leaves no partial mutation behind.
func TestAppendingSink_RejectsNonInsert(t *testing.T) {
	ctx := context.Background()

	for _, kind := range []gosink.ChangeKind{gosink.UpdateBefore, gosink.UpdateAfter, gosink.Delete} {
		t.Run(kind.String(), func(t *testing.T) {
			reg := registry.New()
			s := NewAppendingSink("orders", 0, reg)
			require.NoError(t, s.Initialize(ctx, state.NewMemoryStore()))

			_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "a"))
			require.NoError(t, err)

			_, err = s.Accept(ctx, gosink.NewChangeEvent(kind, 1, "a"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNonInsertEvent)

			// The offending event must not have touched the raw log.
			assert.Equal(t, []string{"+I(1, a)"}, reg.RawResults("orders"))
		})
	}
}

// TestAppendingSink_SnapshotRestore runs the full checkpoint cycle: snapshot
// into a store, rebuild from the captured snapshot, and verify the restored
// incarnation carries the same results.
func TestAppendingSink_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	store := state.NewMemoryStore()

	s := NewAppendingSink("orders", 0, reg)
	require.NoError(t, s.Initialize(ctx, store))
	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "a"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 2, "b"))
	require.NoError(t, err)
	require.NoError(t, s.Snapshot(ctx))

	// Events after the snapshot are lost on failure.
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 3, "lost"))
	require.NoError(t, err)

	restoredStore := state.NewMemoryStoreFrom(store.Checkpoint())
	restored := NewAppendingSink("orders", 0, reg)
	require.NoError(t, restored.Initialize(ctx, restoredStore))

	assert.Equal(t, []string{"+I(1, a)", "+I(2, b)"}, reg.RawResults("orders"))
}

// TestAppendingSink_InitializeFreshStoreIgnoresState verifies a non-restored
// store yields an empty log even if the store holds stale data.
func TestAppendingSink_InitializeFreshStoreIgnoresState(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()

	store := state.NewMemoryStore()
	list, err := store.ListState("sink-results")
	require.NoError(t, err)
	require.NoError(t, list.Add(ctx, "+I(9, stale)"))

	s := NewAppendingSink("orders", 0, reg)
	require.NoError(t, s.Initialize(ctx, store))
	assert.Empty(t, reg.RawResults("orders"))
}

// TestAppendingBatchOutput_Lifecycle verifies the bounded-job output requires
// Open before writes and rejects non-insert records.
func TestAppendingBatchOutput_Lifecycle(t *testing.T) {
	reg := registry.New()
	out := NewAppendingBatchOutput("orders", reg)

	err := out.WriteRecord(gosink.NewChangeEvent(gosink.Insert, 1, "a"))
	require.Error(t, err)

	require.NoError(t, out.Open(0))
	require.NoError(t, out.WriteRecord(gosink.NewChangeEvent(gosink.Insert, 1, "a")))

	err = out.WriteRecord(gosink.NewChangeEvent(gosink.Delete, 1, "a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonInsertEvent)

	require.NoError(t, out.Close())
	assert.Equal(t, []string{"+I(1, a)"}, reg.RawResults("orders"))
}
