package preflight

import (
	"context"

	"folio/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("PDF directory", cfg.PDFDir()),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFavorites(ctx, cfg.FavoritesPath()),
		CheckSource(ctx, cfg.Source.BaseURL, cfg.Source.UserAgent),
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(cfg.Notifications.NtfyTopic))
	}

	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
