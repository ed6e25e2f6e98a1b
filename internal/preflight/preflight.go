package preflight

import (
	"context"

	"mediaflow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	if cfg.Operators.JobServiceURL != "" {
		results = append(results, CheckJobService(ctx, cfg.Operators.JobServiceURL, cfg.Operators.JobServiceKey))
	}

	if cfg.Queue.Backend == config.QueueBackendRedis {
		results = append(results, CheckRedis(ctx, "Queue redis", cfg.Queue.RedisAddr))
	}
	if cfg.Notifications.RedisStream != "" && cfg.Notifications.RedisAddr != "" && cfg.Notifications.RedisAddr != cfg.Queue.RedisAddr {
		results = append(results, CheckRedis(ctx, "Notification redis", cfg.Notifications.RedisAddr))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
