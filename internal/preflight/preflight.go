package preflight

import (
	"context"

	"easel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.RecordingEnabled() {
		results = append(results, CheckDirectoryAccess("Recordings directory", cfg.Paths.RecordingsDir))
		results = append(results, CheckOBS(ctx, cfg))
	}
	if cfg.Metadata.APIKey != "" {
		results = append(results, CheckLLM(ctx, "Metadata LLM", cfg))
	}
	if cfg.GalleryEnabled() {
		results = append(results, CheckGallery(ctx, cfg.Gallery.BaseURL))
	}

	return results
}
