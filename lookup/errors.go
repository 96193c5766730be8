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
	"errors"
	"fmt"
)

var (
	// ErrNotOpened marks a lookup issued before Open was called.
	// This is a caller contract breach, always fatal to the call.
	ErrNotOpened = errors.New("open() is not called")
	// ErrClosed marks a lookup submitted after Close.
	ErrClosed = errors.New("lookup function is closed")
	// ErrNilKeyComponent marks a lookup key containing a nil component.
	// A nil component is a caller contract violation, never silently skipped.
	// The call fails but the service remains usable.
	ErrNilKeyComponent = errors.New("lookup key contains a nil component")
)

// LookupError wraps lookup failures with context about the operation.
type LookupError struct {
	Op  string // The operation being performed (e.g., "lookup", "open")
	Err error  // The underlying error
}

// Error returns the error string for LookupError.
func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for LookupError.
func (e *LookupError) Unwrap() error {
	return e.Err
}
