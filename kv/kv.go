// Package kv defines the narrow key-value store contract the caching layer
// consumes, and a Redis implementation of it.
//
// The [Store] interface is deliberately small: plain string values with
// optional TTL, glob key enumeration, append-only lists, and a batched
// [Pipeline]. Pipelines exist for network efficiency, not atomicity — a
// failure mid-pipeline can leave a subset of commands applied. Callers that
// need consistency recover through their own freshness checks, not through
// store transactions.
//
// Store errors are always propagated; a missing key is reported through a
// found bool, never as an error.
package kv

import (
	"context"
	"time"
)

// Store is the key-value contract consumed by the caching subsystem.
type Store interface {
	// Get returns the value for key. The bool reports whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// MGet returns the values of the given keys that exist, in key order.
	// Missing keys are omitted — callers that batch-read whole namespaces
	// never need key-to-value alignment.
	MGet(ctx context.Context, keys ...string) ([]string, error)

	// Set stores value under key. A ttl <= 0 stores without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes the given keys. Removing zero keys or keys that do not
	// exist is a no-op, not an error.
	Del(ctx context.Context, keys ...string) error

	// Keys enumerates keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// RPush appends value to the list at key, creating the list if needed.
	RPush(ctx context.Context, key, value string) error

	// LRange returns list elements between start and stop inclusive;
	// stop -1 means the end of the list.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Pipeline returns a batched command builder. Queued commands are sent
	// together on Exec.
	Pipeline() Pipeline
}

// Pipeline batches store commands for a single round trip. Not atomic.
type Pipeline interface {
	Set(key, value string, ttl time.Duration)
	Del(keys ...string)
	RPush(key, value string)

	// LRange queues a list read. The returned result is populated once
	// Exec succeeds.
	LRange(key string, start, stop int64) *ListResult

	Exec(ctx context.Context) error
}

// ListResult holds the outcome of a pipelined LRange. Values returns nil
// until the pipeline has been executed.
type ListResult struct {
	vals []string
}

// Values returns the list elements read by the pipelined LRange.
func (r *ListResult) Values() []string {
	return r.vals
}

// DefaultQueryTimeout bounds each store operation so a slow or unresponsive
// store cannot hang a request indefinitely.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	queryTimeout time.Duration
}

// Option configures a Store implementation.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{queryTimeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithQueryTimeout sets the per-operation timeout. Defaults to
// DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}
