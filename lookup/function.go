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
	"fmt"

	"github.com/aaronlmathis/gosink"
)

// Function is the synchronous lookup service. Open marks the instance ready
// and increments the shared resource counter; Close decrements it.
type Function struct {
	table   *Table
	counter *ResourceCounter
	opened  bool
}

// NewFunction creates a synchronous lookup function over the given table.
func NewFunction(table *Table, counter *ResourceCounter) *Function {
	return &Function{table: table, counter: counter}
}

// Open marks the function ready for lookups.
func (f *Function) Open() error {
	f.counter.increment()
	f.opened = true
	return nil
}

// Lookup returns the rows matched by the given key components, or an empty
// slice if the key is absent from the mapping. A nil component is an
// invalid-input error regardless of whether the remaining components would
// match a key.
func (f *Function) Lookup(components ...interface{}) ([]gosink.Row, error) {
	if !f.opened {
		return nil, &LookupError{Op: "lookup", Err: ErrNotOpened}
	}
	key := gosink.NewRow(components...)
	if key.ContainsNil() {
		return nil, &LookupError{
			Op:  "lookup",
			Err: fmt.Errorf("%w: (%s)", ErrNilKeyComponent, key),
		}
	}
	rows := f.table.rowsFor(key.String())
	out := make([]gosink.Row, len(rows))
	copy(out, rows)
	return out, nil
}

// Close releases the function.
func (f *Function) Close() error {
	f.counter.decrement()
	return nil
}
