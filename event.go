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

// Package gosink defines the core data model for changelog streams.
//
// A changelog stream carries net row-level mutations against a logical table.
// Every mutation is a ChangeEvent: a ChangeKind paired with the affected Row.
// This file contains the event model and the canonical rendering format used
// throughout the sinks and the result registry.
package gosink

import (
	"fmt"
	"strings"
)

// ChangeKind classifies a row-level mutation in a changelog stream.
type ChangeKind int

const (
	// Insert adds a new row.
	Insert ChangeKind = iota
	// UpdateBefore retracts the previous version of an updated row.
	UpdateBefore
	// UpdateAfter emits the new version of an updated row.
	UpdateAfter
	// Delete removes a row.
	Delete
)

// ShortString returns the two-character kind tag used in raw renderings.
func (k ChangeKind) ShortString() string {
	switch k {
	case Insert:
		return "+I"
	case UpdateBefore:
		return "-U"
	case UpdateAfter:
		return "+U"
	case Delete:
		return "-D"
	default:
		return "??"
	}
}

// String returns the long form of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case Insert:
		return "INSERT"
	case UpdateBefore:
		return "UPDATE_BEFORE"
	case UpdateAfter:
		return "UPDATE_AFTER"
	case Delete:
		return "DELETE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// Row is an ordered sequence of field values in declared column order.
type Row []interface{}

// NewRow builds a Row from the given field values.
func NewRow(values ...interface{}) Row {
	return Row(values)
}

// String returns the canonical rendering of the row: field values in column
// order, comma-and-space separated.
func (r Row) String() string {
	var sb strings.Builder
	for i, v := range r {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", v)
	}
	return sb.String()
}

// Project returns a new Row holding the values at the given indices, in the
// order the indices are listed. Indices must be valid positions in the row.
func (r Row) Project(indices []int) Row {
	projected := make(Row, len(indices))
	for i, idx := range indices {
		projected[i] = r[idx]
	}
	return projected
}

// ContainsNil reports whether any field value is nil.
func (r Row) ContainsNil() bool {
	for _, v := range r {
		if v == nil {
			return true
		}
	}
	return false
}

// ChangeEvent is a single row-level mutation delivered by the pipeline.
// Events are immutable per delivery.
type ChangeEvent struct {
	Kind ChangeKind
	Row  Row
}

// NewChangeEvent builds a ChangeEvent for the given kind and field values.
func NewChangeEvent(kind ChangeKind, values ...interface{}) ChangeEvent {
	return ChangeEvent{Kind: kind, Row: NewRow(values...)}
}

// Rendering returns the kind-tagged rendering of the event, for example
// "+I(1, x)". This is the exact format recorded in raw result logs and
// compared in output verification.
func (e ChangeEvent) Rendering() string {
	return e.Kind.ShortString() + "(" + e.Row.String() + ")"
}

// StripRendering removes the two-character kind tag and the enclosing
// parentheses from a raw rendering, yielding only the field list.
//
// The transform assumes the documented rendering contract: a 2-character tag,
// one opening parenthesis, the fields, and one trailing closing parenthesis.
// A field value containing a literal closing parenthesis at the end of the
// row would survive this transform unharmed, but the contract makes no
// promise for renderings produced outside this package.
func StripRendering(s string) string {
	if len(s) < 4 {
		return s
	}
	return s[3 : len(s)-1]
}
