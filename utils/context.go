package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds metadata reads and writes against Mongo.
	DefaultTimeout = 10 * time.Second

	// LongTimeout is for uploads, which chunk and embed before storing.
	LongTimeout = 2 * time.Minute

	// ShortTimeout is for cache and token lookups.
	ShortTimeout = 2 * time.Second
)

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithLongTimeout creates a context for uploads and other slow operations.
func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

// WithShortTimeout creates a context with short timeout for quick operations
func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
