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

// TestRetractingSink_Multiset verifies duplicate rows accumulate and each
// retraction removes exactly one occurrence.
func TestRetractingSink_Multiset(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	s := NewRetractingSink("clicks", 0, reg)
	require.NoError(t, s.Initialize(ctx, state.NewMemoryStore()))

	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "a"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1, a", "1, a"}, reg.Results("clicks"))

	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Delete, 1, "a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1, a"}, reg.Results("clicks"))
}

// TestRetractingSink_OverRetractIsFatal verifies retracting beyond the number
// of insertions fails the stream: two inserts tolerate exactly two deletes.
func TestRetractingSink_OverRetractIsFatal(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	s := NewRetractingSink("clicks", 0, reg)
	require.NoError(t, s.Initialize(ctx, state.NewMemoryStore()))

	for i := 0; i < 2; i++ {
		_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "a"))
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Delete, 1, "a"))
		require.NoError(t, err)
	}

	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Delete, 1, "a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRowNotFound)
}

// TestRetractingSink_UpdatePair verifies -U retracts the old row and +U adds
// the new one.
func TestRetractingSink_UpdatePair(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	s := NewRetractingSink("clicks", 0, reg)
	require.NoError(t, s.Initialize(ctx, state.NewMemoryStore()))

	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "old"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.UpdateBefore, 1, "old"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.UpdateAfter, 1, "new"))
	require.NoError(t, err)

	assert.Equal(t, []string{"1, new"}, reg.Results("clicks"))
	assert.Equal(t,
		[]string{"+I(1, old)", "-U(1, old)", "+U(1, new)"},
		reg.RawResults("clicks"))
}

// TestRetractingSink_SnapshotRestore verifies the active multiset and raw log
// both survive a checkpoint cycle.
func TestRetractingSink_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	store := state.NewMemoryStore()

	s := NewRetractingSink("clicks", 0, reg)
	require.NoError(t, s.Initialize(ctx, store))
	_, err := s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "a"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Insert, 1, "a"))
	require.NoError(t, err)
	_, err = s.Accept(ctx, gosink.NewChangeEvent(gosink.Delete, 1, "a"))
	require.NoError(t, err)
	require.NoError(t, s.Snapshot(ctx))

	restored := NewRetractingSink("clicks", 0, reg)
	require.NoError(t, restored.Initialize(ctx, state.NewMemoryStoreFrom(store.Checkpoint())))

	assert.Equal(t, []string{"1, a"}, reg.Results("clicks"))
	assert.Len(t, reg.RawResults("clicks"), 3)

	// The restored multiset honors the retract count invariant.
	_, err = restored.Accept(ctx, gosink.NewChangeEvent(gosink.Delete, 1, "a"))
	require.NoError(t, err)
	_, err = restored.Accept(ctx, gosink.NewChangeEvent(gosink.Delete, 1, "a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRowNotFound)
}
