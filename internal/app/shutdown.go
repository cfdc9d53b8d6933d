package app

import (
	"context"
	"time"
)

const shutdownTimeout = 5 * time.Second

// shutdownContext returns a fresh context for teardown work that must run
// after the run context is already cancelled.
func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}
