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

// Package state provides durable list state implementations behind the
// gosink.StateStore and gosink.ListState contracts.
//
// This file implements the in-memory reference store. It backs tests and
// demonstrates the snapshot/restore cycle: Checkpoint captures a deep copy of
// every named list, and NewMemoryStoreFrom rebuilds a restored store from
// such a copy atomically.
package state

import (
	"context"
	"sync"

	"github.com/aaronlmathis/gosink"
)

// MemoryStore is an in-memory StateStore. It is safe for use by one task and
// a concurrent checkpoint reader.
type MemoryStore struct {
	mu       sync.Mutex
	states   map[string][]string
	restored bool
}

// NewMemoryStore creates an empty, non-restored store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]string)}
}

// NewMemoryStoreFrom creates a restored store holding a deep copy of the
// given snapshot. Either the entire snapshot is adopted or none of it;
// a partially restored store is never observable.
func NewMemoryStoreFrom(snapshot map[string][]string) *MemoryStore {
	states := make(map[string][]string, len(snapshot))
	for name, values := range snapshot {
		states[name] = append([]string(nil), values...)
	}
	return &MemoryStore{states: states, restored: true}
}

// ListState implements the gosink.StateStore interface.
func (s *MemoryStore) ListState(name string) (gosink.ListState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[name]; !ok {
		s.states[name] = nil
	}
	return &memoryList{store: s, name: name}, nil
}

// Restored implements the gosink.StateStore interface.
func (s *MemoryStore) Restored() bool {
	return s.restored
}

// Checkpoint returns a deep copy of every named list, suitable for feeding
// back into NewMemoryStoreFrom after a simulated failure.
func (s *MemoryStore) Checkpoint() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string][]string, len(s.states))
	for name, values := range s.states {
		snapshot[name] = append([]string(nil), values...)
	}
	return snapshot
}

// memoryList is one named list inside a MemoryStore.
type memoryList struct {
	store *MemoryStore
	name  string
}

// Get implements the gosink.ListState interface.
func (l *memoryList) Get(ctx context.Context) ([]string, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	values := l.store.states[l.name]
	out := make([]string, len(values))
	copy(out, values)
	return out, nil
}

// Add implements the gosink.ListState interface.
func (l *memoryList) Add(ctx context.Context, value string) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.states[l.name] = append(l.store.states[l.name], value)
	return nil
}

// AddAll implements the gosink.ListState interface.
func (l *memoryList) AddAll(ctx context.Context, values []string) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.states[l.name] = append(l.store.states[l.name], values...)
	return nil
}

// Update implements the gosink.ListState interface.
func (l *memoryList) Update(ctx context.Context, values []string) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.states[l.name] = append([]string(nil), values...)
	return nil
}

// Clear implements the gosink.ListState interface.
func (l *memoryList) Clear(ctx context.Context) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.states[l.name] = nil
	return nil
}
