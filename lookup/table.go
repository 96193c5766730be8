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

// Package lookup implements a bounded-concurrency key-to-rows lookup service
// used to enrich pipeline records.
//
// A Table is a fixed key-to-rows mapping built once at construction and
// read-only thereafter. Lookup identity is the key row's canonical string
// form. The mapping is shared by any number of Function and AsyncFunction
// instances.
package lookup

import (
	"sync/atomic"

	"github.com/aaronlmathis/gosink"
)

// Table is a static key-to-rows mapping.
type Table struct {
	data map[string][]gosink.Row
}

// NewTable creates an empty lookup table.
func NewTable() *Table {
	return &Table{data: make(map[string][]gosink.Row)}
}

// Put registers the rows matched by the given key, replacing any prior entry.
// Returns the table for chaining during construction.
func (t *Table) Put(key gosink.Row, rows ...gosink.Row) *Table {
	t.data[key.String()] = append([]gosink.Row(nil), rows...)
	return t
}

// rowsFor returns the rows matched by the canonical key form, or nil if the
// key is absent.
func (t *Table) rowsFor(key string) []gosink.Row {
	return t.data[key]
}

// Len returns the number of distinct keys in the table.
func (t *Table) Len() int {
	return len(t.data)
}

// ResourceCounter tracks open lookup function instances. A harness checks it
// after a run to detect leaked un-closed instances.
type ResourceCounter struct {
	n atomic.Int64
}

// NewResourceCounter creates a counter at zero.
func NewResourceCounter() *ResourceCounter {
	return &ResourceCounter{}
}

// increment records one opened instance.
func (c *ResourceCounter) increment() {
	c.n.Add(1)
}

// decrement records one closed instance.
func (c *ResourceCounter) decrement() {
	c.n.Add(-1)
}

// Value returns the number of currently open instances.
func (c *ResourceCounter) Value() int {
	return int(c.n.Load())
}
