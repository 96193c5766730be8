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

// Package gosink provides a changelog pipeline driver for exactly-once sinks.
//
// The Pipeline API gives the repo a minimal in-process runtime: it feeds a
// ChangeSource into a ChangelogSink one event at a time, triggers a snapshot
// into the configured StateStore at checkpoint boundaries, and treats a
// Complete outcome from the sink as a clean termination request.
//
// Example usage:
//
//	pipeline, err := gosink.NewPipeline().
//	    From(source).
//	    To(sink).
//	    WithStateStore(store).
//	    WithCheckpointInterval(100).
//	    Build()
//	if err != nil { log.Fatal(err) }
//	if err := pipeline.Execute(context.Background()); err != nil { log.Fatal(err) }
package gosink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// PipelineBuilder provides a fluent API for constructing changelog pipelines.
// Use NewPipeline() to create a new builder, then chain From, To, and
// configuration methods.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder for constructing a changelog pipeline.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			checkpointInterval: 0,
			logger:             slog.Default(),
		},
	}
}

// From sets the ChangeSource for the pipeline.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) From(source ChangeSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// To sets the ChangelogSink for the pipeline.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) To(sink ChangelogSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// WithStateStore sets the durable state store the sink initializes from and
// snapshots into.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) WithStateStore(store StateStore) *PipelineBuilder {
	pb.pipeline.store = store
	return pb
}

// WithCheckpointInterval sets how many accepted events pass between snapshots.
// An interval of 0 disables periodic checkpoints; a final snapshot is still
// taken when the stream ends.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) WithCheckpointInterval(interval int) *PipelineBuilder {
	pb.pipeline.checkpointInterval = interval
	return pb
}

// WithLogger sets the logger used by the pipeline driver.
//
// Returns the builder for chaining.
func (pb *PipelineBuilder) WithLogger(logger *slog.Logger) *PipelineBuilder {
	pb.pipeline.logger = logger
	return pb
}

// Build validates and constructs the Pipeline from the builder.
//
// Returns the constructed pipeline, or an error if required components are missing.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, fmt.Errorf("pipeline requires a change source")
	}
	if pb.pipeline.sink == nil {
		return nil, fmt.Errorf("pipeline requires a changelog sink")
	}
	if pb.pipeline.store == nil {
		return nil, fmt.Errorf("pipeline requires a state store")
	}
	return pb.pipeline, nil
}

// Pipeline drives change events from a source into an exactly-once sink.
//
// Use Execute to initialize the sink, process all events, and snapshot at
// checkpoint boundaries.
type Pipeline struct {
	source             ChangeSource
	sink               ChangelogSink
	store              StateStore
	checkpointInterval int
	logger             *slog.Logger
}

// Execute runs the pipeline, processing all events from source to sink.
//
// ctx: context for cancellation and deadlines
// Returns an error if a fatal stream violation occurs or the context is cancelled.
//
// Execute initializes (or restores) the sink from the state store, then feeds
// events one at a time. A Complete outcome from the sink ends the run
// successfully before the source is exhausted. A snapshot is taken every
// checkpoint interval and once more when the run ends cleanly.
func (p *Pipeline) Execute(ctx context.Context) error {
	defer func() {
		if p.source != nil {
			p.source.Close()
		}
		if p.sink != nil {
			p.sink.Close()
		}
	}()

	if err := p.sink.Initialize(ctx, p.store); err != nil {
		return fmt.Errorf("sink initialization failed: %w", err)
	}
	if p.store.Restored() {
		p.logger.Info("sink state restored from snapshot")
	}

	accepted := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, err := p.source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("source read failed: %w", err)
		}

		outcome, err := p.sink.Accept(ctx, event)
		if err != nil {
			return err
		}
		accepted++

		if outcome == Complete {
			p.logger.Info("sink signalled completion", "accepted", accepted)
			break
		}

		if p.checkpointInterval > 0 && accepted%p.checkpointInterval == 0 {
			if err := p.sink.Snapshot(ctx); err != nil {
				return fmt.Errorf("checkpoint failed: %w", err)
			}
			p.logger.Debug("checkpoint taken", "accepted", accepted)
		}
	}

	if err := p.sink.Snapshot(ctx); err != nil {
		return fmt.Errorf("final snapshot failed: %w", err)
	}
	return nil
}
