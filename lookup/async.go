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
	"fmt"
	"sync"

	"github.com/aaronlmathis/gosink"
)

// Future resolves to the rows matched by one asynchronous lookup.
type Future struct {
	done chan struct{}
	rows []gosink.Row
}

// Wait blocks until the lookup resolves or the context is cancelled.
// The lookup itself is never cancelled; a context error only abandons the wait.
func (f *Future) Wait(ctx context.Context) ([]gosink.Row, error) {
	select {
	case <-f.done:
		return f.rows, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// request is one queued lookup awaiting the worker.
type request struct {
	key    string
	future *Future
}

// AsyncFunction is the asynchronous lookup service. All lookups are resolved
// by a single dedicated worker goroutine created in Open, bounding concurrency
// to one so completion order is deterministic. Close stops accepting new
// submissions but lets the worker drain every pending lookup before returning;
// cancellation of a submitted lookup is not supported.
type AsyncFunction struct {
	table   *Table
	counter *ResourceCounter

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*request
	opened bool
	closed bool
	done   chan struct{}
}

// NewAsyncFunction creates an asynchronous lookup function over the given table.
func NewAsyncFunction(table *Table, counter *ResourceCounter) *AsyncFunction {
	af := &AsyncFunction{table: table, counter: counter}
	af.cond = sync.NewCond(&af.mu)
	return af
}

// Open marks the function ready and starts the worker goroutine.
func (f *AsyncFunction) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opened {
		return &LookupError{Op: "open", Err: fmt.Errorf("already opened")}
	}
	f.counter.increment()
	f.opened = true
	f.done = make(chan struct{})
	go f.worker()
	return nil
}

// Lookup submits a key lookup and returns a Future the single worker will
// resolve with the matched rows, or with an empty result if the key is absent.
// Input validation happens synchronously: a nil component or a lifecycle
// violation fails the call before anything is queued.
func (f *AsyncFunction) Lookup(components ...interface{}) (*Future, error) {
	key := gosink.NewRow(components...)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.opened {
		return nil, &LookupError{Op: "lookup", Err: ErrNotOpened}
	}
	if f.closed {
		return nil, &LookupError{Op: "lookup", Err: ErrClosed}
	}
	if key.ContainsNil() {
		return nil, &LookupError{
			Op:  "lookup",
			Err: fmt.Errorf("%w: (%s)", ErrNilKeyComponent, key),
		}
	}

	fut := &Future{done: make(chan struct{})}
	f.queue = append(f.queue, &request{key: key.String(), future: fut})
	f.cond.Signal()
	return fut, nil
}

// Close stops accepting new lookups, waits for the worker to drain the queue,
// and releases the function.
func (f *AsyncFunction) Close() error {
	f.mu.Lock()
	if !f.opened {
		f.mu.Unlock()
		return &LookupError{Op: "close", Err: ErrNotOpened}
	}
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()

	<-f.done
	f.counter.decrement()
	return nil
}

// worker resolves queued lookups one at a time until the queue is drained
// after Close.
func (f *AsyncFunction) worker() {
	defer close(f.done)
	for {
		f.mu.Lock()
		for len(f.queue) == 0 && !f.closed {
			f.cond.Wait()
		}
		if len(f.queue) == 0 {
			f.mu.Unlock()
			return
		}
		req := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()

		rows := f.table.rowsFor(req.key)
		out := make([]gosink.Row, len(rows))
		copy(out, rows)
		req.future.rows = out
		close(req.future.done)
	}
}
