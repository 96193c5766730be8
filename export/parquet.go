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

// Package export dumps verified sink results to columnar files. The Parquet
// exporter writes a table's merged results as a single string column, one row
// per result rendering, in registry read order.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/gosink/registry"
)

// ParquetExportError wraps Parquet-specific export errors with context about
// the operation.
type ParquetExportError struct {
	Op  string // The operation that failed (e.g., "open_file", "write")
	Err error  // The underlying error
}

// Error returns the error string for ParquetExportError.
func (e *ParquetExportError) Error() string {
	return fmt.Sprintf("parquet export %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetExportError.
func (e *ParquetExportError) Unwrap() error {
	return e.Err
}

// ParquetExportOptions configures the Parquet exporter.
type ParquetExportOptions struct {
	Compression compress.Compression // Compression algorithm
	Raw         bool                 // Export raw kind-tagged renderings instead of merged results
}

func (o *ParquetExportOptions) withDefaults() *ParquetExportOptions {
	o.Compression = compress.Codecs.Snappy
	return o
}

// ParquetExportOption represents a configuration function for ParquetExportOptions.
type ParquetExportOption func(*ParquetExportOptions)

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) ParquetExportOption {
	return func(opts *ParquetExportOptions) {
		opts.Compression = compression
	}
}

// WithRawResults exports the raw kind-tagged renderings instead of the
// merged, stripped results.
func WithRawResults(raw bool) ParquetExportOption {
	return func(opts *ParquetExportOptions) {
		opts.Raw = raw
	}
}

// resultSchema is the fixed export schema: one nullable-free string column.
var resultSchema = arrow.NewSchema([]arrow.Field{
	{Name: "result", Type: arrow.BinaryTypes.String},
}, nil)

// WriteTableResults exports one table's results from the registry to a
// Parquet file.
func WriteTableResults(filename string, reg *registry.Registry, table string, options ...ParquetExportOption) error {
	opts := (&ParquetExportOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	var results []string
	if opts.Raw {
		results = reg.RawResults(table)
	} else {
		results = reg.Results(table)
	}
	return writeResults(filename, results, opts)
}

func writeResults(filename string, results []string, opts *ParquetExportOptions) error {
	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &ParquetExportError{Op: "create_directory", Err: err}
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return &ParquetExportError{Op: "open_file", Err: err}
	}
	defer file.Close()

	props := parquet.NewWriterProperties(parquet.WithCompression(opts.Compression))
	writer, err := pqarrow.NewFileWriter(resultSchema, file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetExportError{Op: "create_writer", Err: err}
	}

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), resultSchema)
	defer builder.Release()
	stringBuilder := builder.Field(0).(*array.StringBuilder)
	for _, result := range results {
		stringBuilder.Append(result)
	}
	record := builder.NewRecord()
	defer record.Release()

	if err := writer.Write(record); err != nil {
		writer.Close()
		return &ParquetExportError{Op: "write", Err: err}
	}
	if err := writer.Close(); err != nil {
		return &ParquetExportError{Op: "close_writer", Err: err}
	}
	return nil
}
