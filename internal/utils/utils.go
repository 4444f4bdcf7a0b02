// Package utils holds small helpers shared by the engine and the CLI.
package utils

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
)

var sleep = time.Sleep

// WaitFor sleeps for d or until ctx is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

var jitter = rand.Float64

// Backoff returns an exponential delay with full jitter for the given attempt (starting at 1),
// bounded by limit.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 1 || base <= 0 {
		return 0
	}
	ceiling := base
	for i := 1; i < attempt && ceiling < limit; i++ {
		ceiling *= 2
	}
	if limit > 0 && ceiling > limit {
		ceiling = limit
	}
	return time.Duration(jitter() * float64(ceiling))
}

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
