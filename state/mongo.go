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
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/gosink"
)

// This file implements a MongoDB-backed durable list state for checkpointed
// sinks. List entries are documents {scope, state, pos, value} ordered by pos.

// MongoStoreError provides structured error information for MongoDB state
// operations.
type MongoStoreError struct {
	Op  string // Operation that failed (e.g., "connect", "get", "update")
	Err error  // Underlying error
}

func (e *MongoStoreError) Error() string {
	return fmt.Sprintf("mongo state %s: %v", e.Op, e.Err)
}

func (e *MongoStoreError) Unwrap() error {
	return e.Err
}

// MongoStoreOptions configures the MongoDB state store.
type MongoStoreOptions struct {
	URI         string        // MongoDB connection URI
	Database    string        // Database name
	Collection  string        // Collection name
	Scope       string        // Scope key isolating one task's state
	Timeout     time.Duration // Operation timeout
	MaxPoolSize uint64        // Connection pool size
}

func (o *MongoStoreOptions) withDefaults() *MongoStoreOptions {
	o.Collection = "gosink_state"
	o.Timeout = 30 * time.Second
	o.MaxPoolSize = 5
	return o
}

// MongoStoreOption is a functional option for MongoStoreOptions.
type MongoStoreOption func(*MongoStoreOptions)

// WithMongoURI sets the MongoDB connection URI.
func WithMongoURI(uri string) MongoStoreOption {
	return func(opts *MongoStoreOptions) {
		opts.URI = uri
	}
}

// WithMongoDatabase sets the database name.
func WithMongoDatabase(database string) MongoStoreOption {
	return func(opts *MongoStoreOptions) {
		opts.Database = database
	}
}

// WithMongoCollection sets the collection name.
func WithMongoCollection(collection string) MongoStoreOption {
	return func(opts *MongoStoreOptions) {
		opts.Collection = collection
	}
}

// WithMongoScope sets the scope key isolating one task's state.
func WithMongoScope(scope string) MongoStoreOption {
	return func(opts *MongoStoreOptions) {
		opts.Scope = scope
	}
}

// WithMongoTimeout sets the operation timeout.
func WithMongoTimeout(timeout time.Duration) MongoStoreOption {
	return func(opts *MongoStoreOptions) {
		opts.Timeout = timeout
	}
}

// WithMongoPoolSize sets the connection pool size.
func WithMongoPoolSize(size uint64) MongoStoreOption {
	return func(opts *MongoStoreOptions) {
		opts.MaxPoolSize = size
	}
}

// MongoStore implements gosink.StateStore on a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	opts       MongoStoreOptions
	restored   bool
}

// NewMongoStore connects to MongoDB and probes whether prior state exists for
// the configured scope.
func NewMongoStore(mongoOptions ...MongoStoreOption) (*MongoStore, error) {
	opts := (&MongoStoreOptions{}).withDefaults()
	for _, option := range mongoOptions {
		option(opts)
	}
	if opts.URI == "" {
		return nil, &MongoStoreError{Op: "validate_options", Err: fmt.Errorf("URI is required")}
	}
	if opts.Database == "" {
		return nil, &MongoStoreError{Op: "validate_options", Err: fmt.Errorf("database is required")}
	}
	if opts.Scope == "" {
		return nil, &MongoStoreError{Op: "validate_options", Err: fmt.Errorf("scope is required")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(opts.MaxPoolSize)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, &MongoStoreError{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, &MongoStoreError{Op: "connect", Err: err}
	}

	collection := client.Database(opts.Database).Collection(opts.Collection)
	count, err := collection.CountDocuments(ctx, bson.M{"scope": opts.Scope})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, &MongoStoreError{Op: "probe_restore", Err: err}
	}

	return &MongoStore{
		client:     client,
		collection: collection,
		opts:       *opts,
		restored:   count > 0,
	}, nil
}

// ListState implements the gosink.StateStore interface.
func (s *MongoStore) ListState(name string) (gosink.ListState, error) {
	return &mongoList{store: s, name: name}, nil
}

// Restored implements the gosink.StateStore interface.
func (s *MongoStore) Restored() bool {
	return s.restored
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return &MongoStoreError{Op: "disconnect", Err: err}
	}
	return nil
}

// mongoList is one named list inside a MongoStore.
type mongoList struct {
	store *MongoStore
	name  string
}

func (l *mongoList) filter() bson.M {
	return bson.M{"scope": l.store.opts.Scope, "state": l.name}
}

func (l *mongoList) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.store.opts.Timeout)
}

// Get implements the gosink.ListState interface.
func (l *mongoList) Get(ctx context.Context) ([]string, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	findOpts := options.Find().SetSort(bson.M{"pos": 1})
	cursor, err := l.store.collection.Find(ctx, l.filter(), findOpts)
	if err != nil {
		return nil, &MongoStoreError{Op: "get", Err: err}
	}
	defer cursor.Close(ctx)

	var values []string
	for cursor.Next(ctx) {
		var doc struct {
			Value string `bson:"value"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, &MongoStoreError{Op: "get", Err: err}
		}
		values = append(values, doc.Value)
	}
	if err := cursor.Err(); err != nil {
		return nil, &MongoStoreError{Op: "get", Err: err}
	}
	return values, nil
}

// Add implements the gosink.ListState interface.
func (l *mongoList) Add(ctx context.Context, value string) error {
	return l.AddAll(ctx, []string{value})
}

// AddAll implements the gosink.ListState interface.
func (l *mongoList) AddAll(ctx context.Context, values []string) error {
	if len(values) == 0 {
		return nil
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	next, err := l.nextPos(ctx)
	if err != nil {
		return err
	}
	docs := make([]interface{}, len(values))
	for i, value := range values {
		docs[i] = bson.M{
			"scope": l.store.opts.Scope,
			"state": l.name,
			"pos":   next + int64(i),
			"value": value,
		}
	}
	if _, err := l.store.collection.InsertMany(ctx, docs); err != nil {
		return &MongoStoreError{Op: "add_all", Err: err}
	}
	return nil
}

// Update implements the gosink.ListState interface.
func (l *mongoList) Update(ctx context.Context, values []string) error {
	if err := l.Clear(ctx); err != nil {
		return err
	}
	return l.AddAll(ctx, values)
}

// Clear implements the gosink.ListState interface.
func (l *mongoList) Clear(ctx context.Context) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	if _, err := l.store.collection.DeleteMany(ctx, l.filter()); err != nil {
		return &MongoStoreError{Op: "clear", Err: err}
	}
	return nil
}

func (l *mongoList) nextPos(ctx context.Context) (int64, error) {
	findOpts := options.FindOne().SetSort(bson.M{"pos": -1})
	var doc struct {
		Pos int64 `bson:"pos"`
	}
	err := l.store.collection.FindOne(ctx, l.filter(), findOpts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, &MongoStoreError{Op: "next_pos", Err: err}
	}
	return doc.Pos + 1, nil
}
