package ai

import (
	"context"
	"time"
)

const probeMessage = "Hello"

type Status struct {
	Backend   string
	Available bool
	Latency   time.Duration
	Err       error
}

// Probe sends a short test message and reports whether the backend answered.
func Probe(ctx context.Context, backend Backend, timeout time.Duration) Status {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	_, err := backend.Send(ctx, Request{Message: probeMessage, MaxTokens: 10})
	return Status{
		Backend:   backend.Name(),
		Available: err == nil,
		Latency:   time.Since(started),
		Err:       err,
	}
}
