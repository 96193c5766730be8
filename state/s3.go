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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/aaronlmathis/gosink"
)

// This file implements an S3-backed durable list state for checkpointed
// sinks. Each named list is one object under the store prefix, encoded as a
// JSON string array so entry values may contain any characters.

// S3StoreError provides structured error information for S3 state operations.
type S3StoreError struct {
	Op  string // Operation that failed (e.g., "get_object", "put_object")
	Err error  // Underlying error
}

func (e *S3StoreError) Error() string {
	return fmt.Sprintf("s3 state %s: %v", e.Op, e.Err)
}

func (e *S3StoreError) Unwrap() error {
	return e.Err
}

// S3StoreOptions configures the S3 state store.
type S3StoreOptions struct {
	Bucket         string          // S3 bucket name
	Prefix         string          // Key prefix scoping one task's state
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
	Timeout        time.Duration   // Operation timeout
}

func (o *S3StoreOptions) withDefaults() *S3StoreOptions {
	o.Timeout = 30 * time.Second
	return o
}

// S3StoreOption represents a configuration function for S3StoreOptions.
type S3StoreOption func(*S3StoreOptions)

// WithS3Bucket sets the S3 bucket name.
func WithS3Bucket(bucket string) S3StoreOption {
	return func(opts *S3StoreOptions) {
		opts.Bucket = bucket
	}
}

// WithS3Prefix sets the key prefix scoping one task's state.
func WithS3Prefix(prefix string) S3StoreOption {
	return func(opts *S3StoreOptions) {
		opts.Prefix = prefix
	}
}

// WithS3Region sets the AWS region.
func WithS3Region(region string) S3StoreOption {
	return func(opts *S3StoreOptions) {
		opts.Region = region
	}
}

// WithS3Profile sets the AWS profile to use.
func WithS3Profile(profile string) S3StoreOption {
	return func(opts *S3StoreOptions) {
		opts.Profile = profile
	}
}

// WithS3Credentials sets explicit static credentials.
func WithS3Credentials(creds aws.Credentials) S3StoreOption {
	return func(opts *S3StoreOptions) {
		opts.Credentials = creds
	}
}

// WithS3Endpoint sets a custom S3 endpoint.
func WithS3Endpoint(endpoint string) S3StoreOption {
	return func(opts *S3StoreOptions) {
		opts.EndpointURL = endpoint
	}
}

// WithS3PathStyle enables path-style addressing.
func WithS3PathStyle(pathStyle bool) S3StoreOption {
	return func(opts *S3StoreOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

// WithS3Timeout sets the operation timeout.
func WithS3Timeout(timeout time.Duration) S3StoreOption {
	return func(opts *S3StoreOptions) {
		opts.Timeout = timeout
	}
}

// S3Store implements gosink.StateStore on S3 objects.
type S3Store struct {
	client   *s3.Client
	opts     S3StoreOptions
	restored bool
}

// NewS3Store creates an S3 state store. The store reports Restored() true if
// any object already exists under its prefix.
func NewS3Store(options ...S3StoreOption) (*S3Store, error) {
	opts := (&S3StoreOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}
	if opts.Bucket == "" {
		return nil, &S3StoreError{Op: "validate_options", Err: fmt.Errorf("bucket is required")}
	}
	if opts.Prefix == "" {
		return nil, &S3StoreError{Op: "validate_options", Err: fmt.Errorf("prefix is required")}
	}

	cfg, err := createAWSConfig(*opts)
	if err != nil {
		return nil, &S3StoreError{Op: "create_aws_config", Err: err}
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	store := &S3Store{client: client, opts: *opts}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	listed, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(opts.Bucket),
		Prefix:  aws.String(opts.Prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, &S3StoreError{Op: "probe_restore", Err: err}
	}
	store.restored = len(listed.Contents) > 0

	return store, nil
}

// createAWSConfig creates AWS configuration from options.
func createAWSConfig(opts S3StoreOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return aws.Config{}, err
	}
	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}
	return cfg, nil
}

// ListState implements the gosink.StateStore interface.
func (s *S3Store) ListState(name string) (gosink.ListState, error) {
	return &s3List{store: s, key: s.opts.Prefix + "/" + name}, nil
}

// Restored implements the gosink.StateStore interface.
func (s *S3Store) Restored() bool {
	return s.restored
}

// s3List is one named list inside an S3Store, stored as a single object.
type s3List struct {
	store *S3Store
	key   string
}

func (l *s3List) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.store.opts.Timeout)
}

// Get implements the gosink.ListState interface.
func (l *s3List) Get(ctx context.Context) ([]string, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	result, err := l.store.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.store.opts.Bucket),
		Key:    aws.String(l.key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, &S3StoreError{Op: "get_object", Err: err}
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, &S3StoreError{Op: "read_object", Err: err}
	}
	var values []string
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, &S3StoreError{Op: "decode_object", Err: err}
	}
	return values, nil
}

// Add implements the gosink.ListState interface.
func (l *s3List) Add(ctx context.Context, value string) error {
	return l.AddAll(ctx, []string{value})
}

// AddAll implements the gosink.ListState interface.
// S3 has no append primitive, so AddAll is a read-modify-write of the object.
func (l *s3List) AddAll(ctx context.Context, values []string) error {
	if len(values) == 0 {
		return nil
	}
	existing, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return l.Update(ctx, append(existing, values...))
}

// Update implements the gosink.ListState interface.
func (l *s3List) Update(ctx context.Context, values []string) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	if values == nil {
		values = []string{}
	}
	body, err := json.Marshal(values)
	if err != nil {
		return &S3StoreError{Op: "encode_object", Err: err}
	}
	_, err = l.store.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(l.store.opts.Bucket),
		Key:    aws.String(l.key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return &S3StoreError{Op: "put_object", Err: err}
	}
	return nil
}

// Clear implements the gosink.ListState interface.
func (l *s3List) Clear(ctx context.Context) error {
	return l.Update(ctx, nil)
}

// isNoSuchKey reports whether the error is S3's missing-object error.
func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
