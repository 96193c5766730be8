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
	"fmt"

	"github.com/aaronlmathis/gosink"
	"github.com/aaronlmathis/gosink/registry"
)

// AppendingBatchOutput is the batch-mode counterpart of AppendingSink: an
// insert-only output with an open/write/close lifecycle and no checkpoint
// state. Results are published into the registry the same way.
type AppendingBatchOutput struct {
	table    string
	registry *registry.Registry
	slot     *registry.TaskSlot
}

// NewAppendingBatchOutput creates a batch output for the given table.
func NewAppendingBatchOutput(table string, reg *registry.Registry) *AppendingBatchOutput {
	return &AppendingBatchOutput{table: table, registry: reg}
}

// Open binds a registry slot for the given task, replacing any slot left by
// a previous run.
func (o *AppendingBatchOutput) Open(taskID int) error {
	o.slot = o.registry.Bind(o.table, taskID, registry.KindAppend)
	return nil
}

// WriteRecord appends one insert event's rendering to the raw log.
// Any other event kind is fatal.
func (o *AppendingBatchOutput) WriteRecord(event gosink.ChangeEvent) error {
	if o.slot == nil {
		return &SinkError{Op: "write", Table: o.table, Err: fmt.Errorf("output is not opened")}
	}
	if event.Kind != gosink.Insert {
		return &SinkError{
			Op:    "write",
			Table: o.table,
			Err:   fmt.Errorf("%w: got %s", ErrNonInsertEvent, event.Kind),
		}
	}
	o.slot.AppendRaw(event.Rendering())
	return nil
}

// Close releases the output. The registry slot stays readable until the next
// incarnation rebinds it.
func (o *AppendingBatchOutput) Close() error {
	return nil
}
