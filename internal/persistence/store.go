// Copyright 2025 James Ross

// Package persistence implements the pluggable key/value store backing
// Migration State and Job Queue history (SPEC_FULL.md §4.13), grounded
// on the teacher's internal/storage-backends capability-gated backend
// interface (types.go's QueueBackend/BackendCapabilities shape), narrowed
// from a job queue to a plain byte-value store since nothing in this
// domain needs Redis Streams consumer groups or DLQ semantics.
package persistence

import (
	"context"
	"time"
)

// Capabilities describes what a Store backend guarantees, mirroring the
// teacher's BackendCapabilities pattern so callers can branch on what a
// configured backend actually supports instead of assuming Redis.
type Capabilities struct {
	Persistent bool // survives process restart
	TTL        bool // honors per-entry TTLs; expired entries are never returned
	Clustered  bool // safe for multiple processes to share
}

// Store is the KV contract every persistence backend implements: get,
// set, remove, and list keys by prefix, per SPEC_FULL.md §4.13.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Capabilities() Capabilities
	Close() error
}

// ErrNotFound would be returned by Get, but Get instead reports absence
// via its bool return — this sentinel exists for callers that prefer
// errors.Is-style checks against a wrapped backend error.
type notFoundError struct{}

func (notFoundError) Error() string { return "persistence: key not found" }

// ErrNotFound marks a key as absent.
var ErrNotFound error = notFoundError{}
