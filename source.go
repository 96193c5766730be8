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

package gosink

import (
	"context"
	"io"
)

// SliceSource is a ChangeSource backed by an in-memory event slice.
// It delivers events in slice order and returns io.EOF when exhausted.
type SliceSource struct {
	events []ChangeEvent
	index  int
}

// NewSliceSource creates a SliceSource over the given events.
func NewSliceSource(events ...ChangeEvent) *SliceSource {
	return &SliceSource{events: events}
}

// Next implements the ChangeSource interface.
func (s *SliceSource) Next(ctx context.Context) (ChangeEvent, error) {
	select {
	case <-ctx.Done():
		return ChangeEvent{}, ctx.Err()
	default:
	}

	if s.index >= len(s.events) {
		return ChangeEvent{}, io.EOF
	}
	event := s.events[s.index]
	s.index++
	return event, nil
}

// Close implements the ChangeSource interface.
func (s *SliceSource) Close() error {
	return nil
}

// Remaining returns the number of undelivered events.
func (s *SliceSource) Remaining() int {
	return len(s.events) - s.index
}
