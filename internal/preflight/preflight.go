package preflight

import (
	"context"

	"herhaven/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	if cfg.Paths.LogDir != "" && cfg.Paths.LogDir != cfg.Paths.DataDir {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if cfg.Storage.Backend == config.BackendFile {
		results = append(results, CheckDirectoryAccess("Queue directory", cfg.Storage.FileDir))
	}

	results = append(results, CheckStorage(ctx, cfg))
	results = append(results, CheckRemoteAPI(ctx, cfg.API.BaseURL, cfg.API.Token))

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNotificationsFromConfig(cfg))
	}

	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
