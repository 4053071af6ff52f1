package preflight

import (
	"context"

	"avpackaging/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger checks catalog reachability for RunAll.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunLocal executes the checks that need no network access: tmp directory
// access, free space and the ffmpeg binary.
func RunLocal(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Tmp directory", cfg.Paths.TmpDir),
		CheckFreeSpace("Free space", cfg.Paths.TmpDir, cfg.Preflight.MinFreeGiB),
		CheckFFmpeg(cfg.Poster.FFmpegBinary),
	}
}

// RunAll executes the local checks plus catalog reachability. A nil catalog
// skips the catalog check.
func RunAll(ctx context.Context, cfg *config.Config, catalog Pinger) []Result {
	results := RunLocal(cfg)
	if results == nil {
		return nil
	}
	if catalog != nil {
		results = append(results, CheckCatalog(ctx, catalog))
	}
	return results
}

// Failures returns the results that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
