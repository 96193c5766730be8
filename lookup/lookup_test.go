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

package lookup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/gosink"
)

func usersTable() *Table {
	return NewTable().
		Put(gosink.NewRow(1),
			gosink.NewRow(1, "Julian"),
			gosink.NewRow(1, "Hello")).
		Put(gosink.NewRow(2),
			gosink.NewRow(2, "Jark"))
}

// TestFunction_Lookup matches rows by the canonical key form.
func TestFunction_Lookup(t *testing.T) {
	counter := NewResourceCounter()
	f := NewFunction(usersTable(), counter)
	require.NoError(t, f.Open())
	defer f.Close()

	rows, err := f.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, []gosink.Row{
		gosink.NewRow(1, "Julian"),
		gosink.NewRow(1, "Hello"),
	}, rows)

	rows, err = f.Lookup(2)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// TestFunction_AbsentKeyIsEmpty verifies an unknown key yields an empty
// result, not an error.
func TestFunction_AbsentKeyIsEmpty(t *testing.T) {
	f := NewFunction(usersTable(), NewResourceCounter())
	require.NoError(t, f.Open())
	defer f.Close()

	rows, err := f.Lookup(99)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// TestFunction_NilKeyComponentIsFatal verifies nil key components are
// rejected before the table is consulted.
func TestFunction_NilKeyComponentIsFatal(t *testing.T) {
	f := NewFunction(usersTable(), NewResourceCounter())
	require.NoError(t, f.Open())
	defer f.Close()

	_, err := f.Lookup(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilKeyComponent)

	_, err = f.Lookup(1, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilKeyComponent)
}

// TestFunction_LookupBeforeOpenIsFatal enforces the open-before-lookup
// lifecycle.
func TestFunction_LookupBeforeOpenIsFatal(t *testing.T) {
	f := NewFunction(usersTable(), NewResourceCounter())

	_, err := f.Lookup(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotOpened)
}

// TestResourceCounter_Balance verifies open/close pairs balance the shared
// counter so a harness can detect leaked instances.
func TestResourceCounter_Balance(t *testing.T) {
	counter := NewResourceCounter()
	table := usersTable()

	f1 := NewFunction(table, counter)
	f2 := NewAsyncFunction(table, counter)
	require.NoError(t, f1.Open())
	require.NoError(t, f2.Open())
	assert.Equal(t, 2, counter.Value())

	require.NoError(t, f1.Close())
	require.NoError(t, f2.Close())
	assert.Equal(t, 0, counter.Value())
}

// TestFunction_ResultIsCopy verifies callers cannot mutate the table through
// a lookup result.
func TestFunction_ResultIsCopy(t *testing.T) {
	f := NewFunction(usersTable(), NewResourceCounter())
	require.NoError(t, f.Open())
	defer f.Close()

	rows, err := f.Lookup(1)
	require.NoError(t, err)
	rows[0] = gosink.NewRow(1, "mutated")

	again, err := f.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, gosink.NewRow(1, "Julian"), again[0])
}

// TestAsyncFunction_Lookup resolves futures with the matched rows.
func TestAsyncFunction_Lookup(t *testing.T) {
	ctx := context.Background()
	f := NewAsyncFunction(usersTable(), NewResourceCounter())
	require.NoError(t, f.Open())
	defer f.Close()

	fut, err := f.Lookup(1)
	require.NoError(t, err)
	rows, err := fut.Wait(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	fut, err = f.Lookup(99)
	require.NoError(t, err)
	rows, err = fut.Wait(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// TestAsyncFunction_ValidationIsSynchronous verifies lifecycle and nil-key
// violations fail the submission itself, not the future.
func TestAsyncFunction_ValidationIsSynchronous(t *testing.T) {
	f := NewAsyncFunction(usersTable(), NewResourceCounter())

	_, err := f.Lookup(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotOpened)

	require.NoError(t, f.Open())
	_, err = f.Lookup(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilKeyComponent)

	require.NoError(t, f.Close())
	_, err = f.Lookup(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
}

// TestAsyncFunction_CloseDrainsPending verifies every future submitted before
// Close resolves; none are abandoned.
func TestAsyncFunction_CloseDrainsPending(t *testing.T) {
	ctx := context.Background()
	f := NewAsyncFunction(usersTable(), NewResourceCounter())
	require.NoError(t, f.Open())

	futures := make([]*Future, 0, 50)
	for i := 0; i < 50; i++ {
		fut, err := f.Lookup(1)
		require.NoError(t, err)
		futures = append(futures, fut)
	}
	require.NoError(t, f.Close())

	// Close returned, so every future must already be resolved.
	for _, fut := range futures {
		rows, err := fut.Wait(ctx)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	}
}

// TestFuture_WaitHonorsContext verifies a cancelled context abandons the wait
// without affecting the lookup itself.
func TestFuture_WaitHonorsContext(t *testing.T) {
	fut := &Future{done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := fut.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestAsyncFunction_DoubleCloseIsIdempotent allows repeated Close calls.
func TestAsyncFunction_DoubleCloseIsIdempotent(t *testing.T) {
	f := NewAsyncFunction(usersTable(), NewResourceCounter())
	require.NoError(t, f.Open())
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}
