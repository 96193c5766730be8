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

// Package factory builds changelog sinks from flat option maps, the way a
// table connector is configured from declarative properties. Options can come
// from an in-process map, a YAML file, or GOSINK_-prefixed environment
// variables; later sources override earlier ones.
package factory

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aaronlmathis/gosink"
	"github.com/aaronlmathis/gosink/registry"
	"github.com/aaronlmathis/gosink/sink"
)

// Option keys understood by the factory.
const (
	// OptionTableName names the logical table the sink writes. Required.
	OptionTableName = "table-name"
	// OptionMode selects the reconciliation policy: append, upsert, or
	// retract. Defaults to append.
	OptionMode = "mode"
	// OptionKeyIndices lists the row positions forming the upsert key.
	// Required for upsert mode.
	OptionKeyIndices = "key-indices"
	// OptionExpectedRecords bounds an upsert stream; the sink signals
	// completion after accepting this many events. Defaults to unbounded.
	OptionExpectedRecords = "expected-records"
)

// Sink modes.
const (
	ModeAppend  = "append"
	ModeUpsert  = "upsert"
	ModeRetract = "retract"
)

// envPrefix is the prefix for environment variable overrides, for example
// GOSINK_TABLE_NAME=orders.
const envPrefix = "GOSINK_"

// ConfigError wraps sink configuration errors with the offending option key.
type ConfigError struct {
	Key string // The option key in error, empty for load failures
	Err error  // The underlying error
}

// Error returns the error string for ConfigError.
func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("sink config: %v", e.Err)
	}
	return fmt.Sprintf("sink config [%s]: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error for ConfigError.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SinkConfig is a parsed, validated sink configuration.
type SinkConfig struct {
	Table           string
	Mode            string
	KeyIndices      []int
	ExpectedRecords int
}

// ParseSinkOptions parses and validates a flat option map.
func ParseSinkOptions(options map[string]interface{}) (SinkConfig, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return SinkConfig{}, err
	}
	if err := k.Load(confmap.Provider(options, "."), nil); err != nil {
		return SinkConfig{}, &ConfigError{Err: fmt.Errorf("failed to load options: %w", err)}
	}
	return configFromKoanf(k)
}

// LoadSinkConfig reads sink options from a YAML file, applying GOSINK_
// environment variables on top.
func LoadSinkConfig(path string) (SinkConfig, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return SinkConfig{}, err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return SinkConfig{}, &ConfigError{Err: fmt.Errorf("error reading config file %s: %w", path, err)}
	}
	// GOSINK_TABLE_NAME -> table-name
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", "-")
	}), nil); err != nil {
		return SinkConfig{}, &ConfigError{Err: fmt.Errorf("failed to load env vars: %w", err)}
	}
	return configFromKoanf(k)
}

func loadDefaults(k *koanf.Koanf) error {
	if err := k.Load(confmap.Provider(map[string]interface{}{
		OptionMode:            ModeAppend,
		OptionExpectedRecords: sink.Unbounded,
	}, "."), nil); err != nil {
		return &ConfigError{Err: fmt.Errorf("failed to load defaults: %w", err)}
	}
	return nil
}

func configFromKoanf(k *koanf.Koanf) (SinkConfig, error) {
	cfg := SinkConfig{
		Table:           k.String(OptionTableName),
		Mode:            k.String(OptionMode),
		KeyIndices:      k.Ints(OptionKeyIndices),
		ExpectedRecords: k.Int(OptionExpectedRecords),
	}
	if cfg.Table == "" {
		return SinkConfig{}, &ConfigError{Key: OptionTableName, Err: fmt.Errorf("option is required")}
	}
	switch cfg.Mode {
	case ModeAppend, ModeRetract:
		// no key columns in these modes
	case ModeUpsert:
		if len(cfg.KeyIndices) == 0 {
			return SinkConfig{}, &ConfigError{Key: OptionKeyIndices, Err: fmt.Errorf("option is required in upsert mode")}
		}
	default:
		return SinkConfig{}, &ConfigError{Key: OptionMode, Err: fmt.Errorf("unknown mode %q", cfg.Mode)}
	}
	if cfg.ExpectedRecords != sink.Unbounded && cfg.ExpectedRecords <= 0 {
		return SinkConfig{}, &ConfigError{Key: OptionExpectedRecords, Err: fmt.Errorf("must be positive or unbounded, got %d", cfg.ExpectedRecords)}
	}
	return cfg, nil
}

// Build constructs the configured sink for one parallel task, publishing into
// the given registry.
func (c SinkConfig) Build(taskID int, reg *registry.Registry) (gosink.ChangelogSink, error) {
	switch c.Mode {
	case ModeAppend:
		return sink.NewAppendingSink(c.Table, taskID, reg), nil
	case ModeUpsert:
		return sink.NewKeyedUpsertSink(c.Table, taskID, reg, c.KeyIndices,
			sink.WithExpectedRecords(c.ExpectedRecords)), nil
	case ModeRetract:
		return sink.NewRetractingSink(c.Table, taskID, reg), nil
	default:
		return nil, &ConfigError{Key: OptionMode, Err: fmt.Errorf("unknown mode %q", c.Mode)}
	}
}
