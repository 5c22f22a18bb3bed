package main

import (
	"context"
	"time"

	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/worker"
)

// registerHandlers installs the built-in task handlers. Deployments
// embedding hive as a library register their own instead.
func registerHandlers(pool *worker.Pool) {
	pool.Register("echo", handleEcho)
	pool.Register("sleep", handleSleep)
}

// handleEcho returns the task context unchanged. Useful for wiring
// checks and end-to-end smoke tests against a live instance.
func handleEcho(ctx context.Context, task *coord.Task, report func(int)) (map[string]any, error) {
	report(100)
	return map[string]any{
		"summary": "echo: " + task.Description,
		"context": task.Context,
	}, nil
}

// handleSleep waits for the duration named in the task context
// ("duration", Go syntax, default 1s), reporting progress as it goes.
func handleSleep(ctx context.Context, task *coord.Task, report func(int)) (map[string]any, error) {
	d := time.Second
	if raw, ok := task.Context["duration"].(string); ok {
		if parsed, err := time.ParseDuration(raw); err == nil {
			d = parsed
		}
	}

	steps := 4
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d / time.Duration(steps)):
			report(i * 100 / steps)
		}
	}
	return map[string]any{"summary": "slept " + d.String()}, nil
}
