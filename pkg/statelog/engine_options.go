package statelog

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring an engine
type Option func(*engineOptions)

type engineOptions struct {
	router     *Router
	logger     *slog.Logger
	txAttempts int
	retryDelay time.Duration
}

// WithRouter sets the event router transitions publish to
func WithRouter(r *Router) Option {
	return func(o *engineOptions) {
		if r != nil {
			o.router = r
		}
	}
}

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTxAttempts sets how many times a conflicted transaction is attempted
func WithTxAttempts(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.txAttempts = n
		}
	}
}

// WithRetryDelay sets the base delay between conflicted attempts; the actual
// delay grows linearly with the attempt number
func WithRetryDelay(d time.Duration) Option {
	return func(o *engineOptions) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}
