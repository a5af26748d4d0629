// Package preflight validates the run environment before any disk mutation:
// folders, templates, and free space.
package preflight

import (
	"context"
	"strings"

	"annualstatement/internal/config"
	"annualstatement/internal/services"
)

// Result reports the outcome of a single preflight check. A failed check
// aborts the run; a warning is surfaced but does not.
type Result struct {
	Name    string
	Passed  bool
	Warning bool
	Detail  string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckSourceDir(cfg.Paths.SourceDir),
		CheckTargetDir(cfg.Paths.TargetDir),
		CheckTemplate("ITC template", cfg.Paths.ITCTemplate),
		CheckTemplate("Sales template", cfg.Paths.SalesTemplate),
		CheckFreeSpace(cfg.Paths.TargetDir, cfg.Organizer.MinFreeSpaceGiB),
	}
	return results
}

// Verify runs all checks and converts any hard failure into a configuration
// error so the caller aborts before touching the target.
func Verify(ctx context.Context, cfg *config.Config) ([]Result, error) {
	results := RunAll(ctx, cfg)
	var failed []string
	for _, r := range results {
		if !r.Passed && !r.Warning {
			failed = append(failed, r.Name+": "+r.Detail)
		}
	}
	if len(failed) > 0 {
		return results, services.Wrap(services.ErrConfiguration, "preflight", "verify",
			strings.Join(failed, "; "), nil)
	}
	return results, nil
}
