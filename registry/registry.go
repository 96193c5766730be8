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

// Package registry aggregates each parallel task's materialized sink state
// under a table name, and exposes the merged verification read surface.
//
// A Registry is an explicit, lifecycle-scoped object: every task and every
// verifying reader shares the same instance. All mutation and reads for all
// tables happen under one internal mutex, in short critical sections with no
// I/O under the lock.
package registry

import (
	"sync"

	"github.com/aaronlmathis/gosink"
)

// Kind selects which materialized view a task slot carries besides the raw log.
type Kind int

const (
	// KindAppend carries only the raw append log.
	KindAppend Kind = iota
	// KindUpsert additionally carries a key-to-latest-row mapping.
	KindUpsert
	// KindRetract additionally carries a multiset of active rows.
	KindRetract
)

// Registry is the process-wide result store for changelog sinks.
// The zero value is not usable; create one with New.
type Registry struct {
	mu sync.Mutex

	// One map per view kind, keyed table -> taskID -> slot. Every bound slot
	// appears in raw; upsert and retract additionally index slots of their kind.
	raw     map[string]map[int]*TaskSlot
	upsert  map[string]map[int]*TaskSlot
	retract map[string]map[int]*TaskSlot
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		raw:     make(map[string]map[int]*TaskSlot),
		upsert:  make(map[string]map[int]*TaskSlot),
		retract: make(map[string]map[int]*TaskSlot),
	}
}

// Bind registers a fresh task slot for (table, taskID), replacing any slot a
// previous incarnation of the task left behind. The registry always reflects
// the current incarnation's state.
func (r *Registry) Bind(table string, taskID int, kind Kind) *TaskSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := &TaskSlot{registry: r, kind: kind}
	if kind == KindUpsert {
		slot.upsert = make(map[string]string)
	}

	bind(r.raw, table, taskID, slot)
	// A rebind of the same task under a different kind must not leave the old
	// kind's index pointing at a stale slot.
	unbind(r.upsert, table, taskID)
	unbind(r.retract, table, taskID)
	switch kind {
	case KindUpsert:
		bind(r.upsert, table, taskID, slot)
	case KindRetract:
		bind(r.retract, table, taskID, slot)
	}
	return slot
}

func bind(m map[string]map[int]*TaskSlot, table string, taskID int, slot *TaskSlot) {
	tasks, ok := m[table]
	if !ok {
		tasks = make(map[int]*TaskSlot)
		m[table] = tasks
	}
	tasks[taskID] = slot
}

func unbind(m map[string]map[int]*TaskSlot, table string, taskID int) {
	if tasks, ok := m[table]; ok {
		delete(tasks, taskID)
		if len(tasks) == 0 {
			delete(m, table)
		}
	}
}

// RawResults returns every registered task's raw kind-tagged renderings for
// the table, concatenated in registry iteration order. Order across tasks is
// not guaranteed to be globally stable.
func (r *Registry) RawResults(table string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rawResultsLocked(table)
}

func (r *Registry) rawResultsLocked(table string) []string {
	result := make([]string, 0)
	for _, slot := range r.raw[table] {
		result = append(result, slot.raw...)
	}
	return result
}

// Results returns the merged materialized view for the table.
//
// If any upsert state is registered, the values of every task's mapping are
// concatenated. Otherwise, if any retract state is registered, every task's
// active rows are concatenated. Otherwise the raw log is returned with the
// kind tag and enclosing parentheses stripped from each rendering.
func (r *Registry) Results(table string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]string, 0)
	if tasks, ok := r.upsert[table]; ok {
		for _, slot := range tasks {
			for _, value := range slot.upsert {
				result = append(result, value)
			}
		}
		return result
	}
	if tasks, ok := r.retract[table]; ok {
		for _, slot := range tasks {
			result = append(result, slot.retract...)
		}
		return result
	}
	for _, rendering := range r.rawResultsLocked(table) {
		result = append(result, gosink.StripRendering(rendering))
	}
	return result
}

// Clear drops all registered state for all tables.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = make(map[string]map[int]*TaskSlot)
	r.upsert = make(map[string]map[int]*TaskSlot)
	r.retract = make(map[string]map[int]*TaskSlot)
}

// TaskSlot is one task's live materialized state. The owning task mutates it
// through the methods below; every method takes the registry lock, so a
// verifying reader never observes a torn intermediate state.
type TaskSlot struct {
	registry *Registry
	kind     Kind

	raw     []string
	upsert  map[string]string
	retract []string
}

// Kind returns the view kind the slot was bound with.
func (s *TaskSlot) Kind() Kind {
	return s.kind
}

// AppendRaw appends one kind-tagged rendering to the raw log.
func (s *TaskSlot) AppendRaw(rendering string) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	s.raw = append(s.raw, rendering)
}

// RawCopy returns a copy of the raw log.
func (s *TaskSlot) RawCopy() []string {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	out := make([]string, len(s.raw))
	copy(out, s.raw)
	return out
}

// RawLen returns the current raw log length.
func (s *TaskSlot) RawLen() int {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	return len(s.raw)
}

// ResetRaw replaces the raw log, used when restoring from a snapshot.
func (s *TaskSlot) ResetRaw(values []string) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	s.raw = append([]string(nil), values...)
}

// PutUpsert sets the latest row rendering for a key.
func (s *TaskSlot) PutUpsert(key, value string) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	s.upsert[key] = value
}

// RemoveUpsert removes the mapping for a key, reporting whether it existed.
func (s *TaskSlot) RemoveUpsert(key string) (string, bool) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	value, ok := s.upsert[key]
	if ok {
		delete(s.upsert, key)
	}
	return value, ok
}

// UpsertCopy returns a copy of the key-to-row mapping.
func (s *TaskSlot) UpsertCopy() map[string]string {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	out := make(map[string]string, len(s.upsert))
	for k, v := range s.upsert {
		out[k] = v
	}
	return out
}

// ResetUpsert replaces the key-to-row mapping, used when restoring.
func (s *TaskSlot) ResetUpsert(mapping map[string]string) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	s.upsert = make(map[string]string, len(mapping))
	for k, v := range mapping {
		s.upsert[k] = v
	}
}

// AddRetract adds one row rendering to the active multiset.
func (s *TaskSlot) AddRetract(value string) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	s.retract = append(s.retract, value)
}

// RemoveRetract deletes one matching occurrence from the active multiset,
// reporting whether a match was found.
func (s *TaskSlot) RemoveRetract(value string) bool {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	for i, existing := range s.retract {
		if existing == value {
			s.retract = append(s.retract[:i], s.retract[i+1:]...)
			return true
		}
	}
	return false
}

// RetractCopy returns a copy of the active multiset.
func (s *TaskSlot) RetractCopy() []string {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	out := make([]string, len(s.retract))
	copy(out, s.retract)
	return out
}

// ResetRetract replaces the active multiset, used when restoring.
func (s *TaskSlot) ResetRetract(values []string) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	s.retract = append([]string(nil), values...)
}
