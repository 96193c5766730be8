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

func newUpsertSink(t *testing.T, reg *registry.Registry, options ...UpsertOption) *KeyedUpsertSink {
	t.Helper()
	s := NewKeyedUpsertSink("users", 0, reg, []int{0}, options...)
	require.NoError(t, s.Initialize(context.Background(), state.NewMemoryStore()))
	return s
}

// TestKeyedUpsertSink_LatestRowWins verifies an update replaces the prior row
// under the same key while the raw log keeps the full history.
func TestKeyedUpsertSink_LatestRowWins(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	s := newUpsertSink(t, reg)

	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "Alice"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.UpdateAfter, 1, "Alicia"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 2, "Bob"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1, Alicia", "2, Bob"}, reg.Results("users"))
	assert.Equal(t,
		[]string{"+I(1, Alice)", "+U(1, Alicia)", "+I(2, Bob)"},
		reg.RawResults("users"))
	assert.Equal(t, 3, s.ReceivedCount())
}

// TestKeyedUpsertSink_DeleteRemovesKey verifies UpdateBefore and Delete drop
// the key from the materialized view.
func TestKeyedUpsertSink_DeleteRemovesKey(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	s := newUpsertSink(t, reg)

	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "Alice"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Delete, 1, "Alice"))
	require.NoError(t, err)

	assert.Empty(t, reg.Results("users"))
	// The raw log still records both events.
	assert.Len(t, reg.RawResults("users"), 2)
}

// TestKeyedUpsertSink_DeleteAbsentKeyIsFatal verifies deleting a key that was
// never inserted fails the stream.
func TestKeyedUpsertSink_DeleteAbsentKeyIsFatal(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	s := newUpsertSink(t, reg)

	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Delete, 7, "ghost"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

// TestKeyedUpsertSink_CompositeKey verifies multi-column keys project in the
// configured index order.
func TestKeyedUpsertSink_CompositeKey(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	s := NewKeyedUpsertSink("users", 0, reg, []int{0, 2})
	require.NoError(t, s.Initialize(ctx, state.NewMemoryStore()))

	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "Alice", "London"))
	require.NoError(t, err)
	// Same composite key (1, London): replaces, does not add.
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.UpdateAfter, 1, "Alicia", "London"))
	require.NoError(t, err)
	// Different city means a different key.
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "Alice", "Paris"))
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"1, Alicia, London", "1, Alice, Paris"},
		reg.Results("users"))
}

// TestKeyedUpsertSink_ExpectedRecordsCompletion verifies the sink signals
// completion exactly when the configured count is reached, not before.
func TestKeyedUpsertSink_ExpectedRecordsCompletion(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	s := newUpsertSink(t, reg, WithExpectedRecords(3))

	for i := 0; i < 2; i++ {
		outcome, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, i, "x"))
		require.NoError(t, err)
		assert.Equal(t, gosink.Continue, outcome)
	}

	outcome, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 2, "x"))
	require.NoError(t, err)
	assert.Equal(t, gosink.Complete, outcome)
}

// TestKeyedUpsertSink_SnapshotRestore verifies the interleaved key/value
// encoding round-trips along with the received count.
func TestKeyedUpsertSink_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	store := state.NewMemoryStore()

	s := NewKeyedUpsertSink("users", 0, reg, []int{0})
	require.NoError(t, s.Initialize(ctx, store))
	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "Alice"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 2, "Bob"))
	require.NoError(t, err)
	require.NoError(t, s.Snapshot(ctx))

	restored := NewKeyedUpsertSink("users", 0, reg, []int{0})
	require.NoError(t, restored.Initialize(ctx, state.NewMemoryStoreFrom(store.Checkpoint())))

	assert.ElementsMatch(t, []string{"1, Alice", "2, Bob"}, reg.Results("users"))
	assert.Equal(t, 2, restored.ReceivedCount())

	// Restored state keeps serving updates against the recovered mapping.
	_, err = restored.Accept(ctx, gosink.NewChangeEvent(gosink.Delete, 2, "Bob"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1, Alice"}, reg.Results("users"))
	assert.Equal(t, 3, restored.ReceivedCount())
}

// TestKeyedUpsertSink_CorruptStateIsFatal verifies an odd number of durable
// upsert entries fails restore instead of guessing at pairs.
func TestKeyedUpsertSink_CorruptStateIsFatal(t *testing.T) {
	ctx := context.Background()

	store := state.NewMemoryStoreFrom(map[string][]string{
		"sink-upsert-results": {"1", "1, Alice", "2"},
	})
	s := NewKeyedUpsertSink("users", 0, registry.New(), []int{0})
	err := s.Initialize(ctx, store)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptState)
}
