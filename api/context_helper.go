package api

import (
	"context"
	"time"
)

// QueryTimeout is the default timeout for database-backed read handlers.
const QueryTimeout = 10 * time.Second

// StatusTimeout bounds the scheduler status lookup, a single small document
// read that should never legitimately take as long as a query fallback chain.
const StatusTimeout = 5 * time.Second

// TickTimeout bounds a manually triggered tick, which runs the full fetch/
// parse/delta/watchlist pipeline rather than a single query.
const TickTimeout = 30 * time.Second

// WithQueryTimeout creates a context bounded by QueryTimeout.
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return WithTimeout(parent, QueryTimeout)
}

// WithTimeout creates a context bounded by an arbitrary handler-specific
// deadline, falling back to context.Background if parent is nil.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}

