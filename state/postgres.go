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

package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/aaronlmathis/gosink"
)

// This file implements a PostgreSQL-backed durable list state for
// checkpointed sinks. Each store instance scopes one task's state; named
// lists are rows keyed by (scope, state, pos).

// PostgresStoreError wraps PostgreSQL-specific state errors with context
// about the operation.
type PostgresStoreError struct {
	Op  string // The operation being performed (e.g., "connect", "get", "update")
	Err error  // The underlying error
}

// Error returns the error string for PostgresStoreError.
func (e *PostgresStoreError) Error() string {
	return fmt.Sprintf("postgres state %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresStoreError.
func (e *PostgresStoreError) Unwrap() error {
	return e.Err
}

// PostgresStoreOptions configures the PostgreSQL state store.
type PostgresStoreOptions struct {
	DSN             string        // PostgreSQL connection string
	TableName       string        // State table name
	Scope           string        // Scope key isolating one task's state
	CreateTable     bool          // Create the state table if not exists
	QueryTimeout    time.Duration // Timeout for queries
	ConnMaxLifetime time.Duration // Max connection lifetime
	MaxOpenConns    int           // Max open connections
	MaxIdleConns    int           // Max idle connections
}

func (o *PostgresStoreOptions) withDefaults() *PostgresStoreOptions {
	o.TableName = "gosink_state"
	o.CreateTable = true
	o.QueryTimeout = 30 * time.Second
	o.ConnMaxLifetime = 5 * time.Minute
	o.MaxOpenConns = 5
	o.MaxIdleConns = 2
	return o
}

// PostgresStoreOption represents a configuration function for PostgresStoreOptions.
type PostgresStoreOption func(*PostgresStoreOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresTable sets the state table name.
func WithPostgresTable(table string) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.TableName = table
	}
}

// WithPostgresScope sets the scope key isolating one task's state, for
// example "orders-task-0".
func WithPostgresScope(scope string) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.Scope = scope
	}
}

// WithPostgresCreateTable enables or disables state table creation.
func WithPostgresCreateTable(create bool) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.CreateTable = create
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.QueryTimeout = timeout
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int, maxLifetime time.Duration) PostgresStoreOption {
	return func(opts *PostgresStoreOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
		opts.ConnMaxLifetime = maxLifetime
	}
}

// PostgresStore implements gosink.StateStore on a PostgreSQL table.
type PostgresStore struct {
	db       *sql.DB
	opts     PostgresStoreOptions
	restored bool
}

// NewPostgresStore connects to PostgreSQL and prepares the state table.
// The store reports Restored() true if any rows already exist for its scope.
func NewPostgresStore(options ...PostgresStoreOption) (*PostgresStore, error) {
	opts := (&PostgresStoreOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}
	if opts.DSN == "" {
		return nil, &PostgresStoreError{Op: "validate_options", Err: fmt.Errorf("DSN is required")}
	}
	if opts.Scope == "" {
		return nil, &PostgresStoreError{Op: "validate_options", Err: fmt.Errorf("scope is required")}
	}

	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &PostgresStoreError{Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), opts.QueryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &PostgresStoreError{Op: "connect", Err: err}
	}

	store := &PostgresStore{db: db, opts: *opts}
	if opts.CreateTable {
		if err := store.createTable(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE scope = $1", opts.TableName)
	if err := db.QueryRowContext(ctx, query, opts.Scope).Scan(&count); err != nil {
		db.Close()
		return nil, &PostgresStoreError{Op: "probe_restore", Err: err}
	}
	store.restored = count > 0

	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		scope TEXT NOT NULL,
		state TEXT NOT NULL,
		pos   BIGINT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (scope, state, pos)
	)`, s.opts.TableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return &PostgresStoreError{Op: "create_table", Err: err}
	}
	return nil
}

// ListState implements the gosink.StateStore interface.
func (s *PostgresStore) ListState(name string) (gosink.ListState, error) {
	return &postgresList{store: s, name: name}, nil
}

// Restored implements the gosink.StateStore interface.
func (s *PostgresStore) Restored() bool {
	return s.restored
}

// Close releases the database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// postgresList is one named list inside a PostgresStore.
type postgresList struct {
	store *PostgresStore
	name  string
}

func (l *postgresList) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.store.opts.QueryTimeout)
}

// Get implements the gosink.ListState interface.
func (l *postgresList) Get(ctx context.Context) ([]string, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT value FROM %s WHERE scope = $1 AND state = $2 ORDER BY pos",
		l.store.opts.TableName,
	)
	rows, err := l.store.db.QueryContext(ctx, query, l.store.opts.Scope, l.name)
	if err != nil {
		return nil, &PostgresStoreError{Op: "get", Err: err}
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, &PostgresStoreError{Op: "get", Err: err}
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, &PostgresStoreError{Op: "get", Err: err}
	}
	return values, nil
}

// Add implements the gosink.ListState interface.
func (l *postgresList) Add(ctx context.Context, value string) error {
	return l.AddAll(ctx, []string{value})
}

// AddAll implements the gosink.ListState interface.
func (l *postgresList) AddAll(ctx context.Context, values []string) error {
	if len(values) == 0 {
		return nil
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return &PostgresStoreError{Op: "add_all", Err: err}
	}
	defer tx.Rollback()

	if err := l.insertAll(ctx, tx, values); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &PostgresStoreError{Op: "add_all", Err: err}
	}
	return nil
}

// Update implements the gosink.ListState interface.
// The delete and rewrite happen in one transaction, so a failed update never
// leaves a partially replaced list.
func (l *postgresList) Update(ctx context.Context, values []string) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return &PostgresStoreError{Op: "update", Err: err}
	}
	defer tx.Rollback()

	query := fmt.Sprintf("DELETE FROM %s WHERE scope = $1 AND state = $2", l.store.opts.TableName)
	if _, err := tx.ExecContext(ctx, query, l.store.opts.Scope, l.name); err != nil {
		return &PostgresStoreError{Op: "update", Err: err}
	}
	if err := l.insertAll(ctx, tx, values); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &PostgresStoreError{Op: "update", Err: err}
	}
	return nil
}

// Clear implements the gosink.ListState interface.
func (l *postgresList) Clear(ctx context.Context) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE scope = $1 AND state = $2", l.store.opts.TableName)
	if _, err := l.store.db.ExecContext(ctx, query, l.store.opts.Scope, l.name); err != nil {
		return &PostgresStoreError{Op: "clear", Err: err}
	}
	return nil
}

func (l *postgresList) insertAll(ctx context.Context, tx *sql.Tx, values []string) error {
	if len(values) == 0 {
		return nil
	}

	var next int64
	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(pos)+1, 0) FROM %s WHERE scope = $1 AND state = $2",
		l.store.opts.TableName,
	)
	if err := tx.QueryRowContext(ctx, query, l.store.opts.Scope, l.name).Scan(&next); err != nil {
		return &PostgresStoreError{Op: "insert", Err: err}
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (scope, state, pos, value) VALUES ($1, $2, $3, $4)",
		l.store.opts.TableName,
	)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return &PostgresStoreError{Op: "insert", Err: err}
	}
	defer stmt.Close()

	for i, value := range values {
		if _, err := stmt.ExecContext(ctx, l.store.opts.Scope, l.name, next+int64(i), value); err != nil {
			return &PostgresStoreError{Op: "insert", Err: err}
		}
	}
	return nil
}
