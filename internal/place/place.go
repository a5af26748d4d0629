// Package place executes a placement plan: verified copies into the planned
// folders with backup-aside and atomic rename. Source files are only ever
// read.
package place

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"annualstatement/internal/fileutil"
	"annualstatement/internal/logging"
	"annualstatement/internal/plan"
	"annualstatement/internal/services"
)

// tempPrefix marks in-flight copies inside the destination folder. Anything
// carrying it is safe to delete; nothing final ever has it.
const tempPrefix = ".astmp-"

// Outcome is the per-file placement result.
type Outcome string

const (
	OutcomePlaced  Outcome = "placed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// FileResult records what happened to one planned entry.
type FileResult struct {
	Entry      plan.Entry
	Outcome    Outcome
	FinalPath  string
	BackupPath string
	Collision  bool
	Err        error
}

// Result aggregates one client's placement pass.
type Result struct {
	Files   []FileResult
	Placed  int
	Skipped int
	Failed  int
}

// Clean reports whether every entry landed or was idempotently skipped.
// Only a clean result finalizes the version.
func (r Result) Clean() bool {
	return r.Failed == 0
}

// Placer copies planned files into place.
type Placer struct {
	logger *slog.Logger
	now    func() time.Time

	// Progress, when set, is called before each entry is processed.
	Progress func(current, total int, item string)
}

func New(logger *slog.Logger) *Placer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Placer{logger: logger, now: time.Now}
}

// Execute creates the client's planned folders and processes every entry.
// A single bad file records a failure and the pass continues; cancellation
// is honored between entries, never mid-copy. The returned error is non-nil
// only when the whole pass cannot proceed (folder creation, cancellation).
func (p *Placer) Execute(ctx context.Context, cp plan.ClientPlan) (Result, error) {
	var result Result
	logger := logging.WithContext(ctx, p.logger)

	for _, dir := range cp.Folders {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, services.Wrap(services.ErrPlacement, "place", "create_folders",
				fmt.Sprintf("creating %s", dir), err)
		}
	}

	for i, entry := range cp.Entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if p.Progress != nil {
			p.Progress(i+1, len(cp.Entries), entry.SourceName)
		}

		fr := p.placeOne(entry)
		result.Files = append(result.Files, fr)
		switch fr.Outcome {
		case OutcomePlaced:
			result.Placed++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeFailed:
			result.Failed++
			logger.Error("placement failed",
				logging.String("source", entry.SourcePath),
				logging.String("destination", entry.DestPath),
				logging.Error(fr.Err))
		}
	}
	return result, nil
}

func (p *Placer) placeOne(entry plan.Entry) FileResult {
	fr := FileResult{Entry: entry, FinalPath: entry.DestPath}

	// Conflicted entries already carry their ordinal suffix from planning.
	fr.Collision = entry.Conflicted

	same, err := fileutil.SameContent(entry.SourcePath, fr.FinalPath)
	if err != nil {
		fr.Outcome = OutcomeFailed
		fr.Err = services.Wrap(services.ErrPlacement, "place", "compare", fr.FinalPath, err)
		return fr
	}
	if same {
		fr.Outcome = OutcomeSkipped
		return fr
	}

	temp := filepath.Join(filepath.Dir(fr.FinalPath), tempPrefix+filepath.Base(fr.FinalPath))
	if err := fileutil.CopyFileVerified(entry.SourcePath, temp); err != nil {
		_ = os.Remove(temp)
		fr.Outcome = OutcomeFailed
		fr.Err = services.Wrap(services.ErrPlacement, "place", "copy", entry.SourcePath, err)
		return fr
	}

	if _, err := os.Stat(fr.FinalPath); err == nil {
		backup := fileutil.BackupPath(fr.FinalPath, plan.Stamp(p.now()))
		if err := os.Rename(fr.FinalPath, backup); err != nil {
			_ = os.Remove(temp)
			fr.Outcome = OutcomeFailed
			fr.Err = services.Wrap(services.ErrPlacement, "place", "backup", fr.FinalPath, err)
			return fr
		}
		fr.BackupPath = backup
	}

	if err := os.Rename(temp, fr.FinalPath); err != nil {
		_ = os.Remove(temp)
		fr.Outcome = OutcomeFailed
		fr.Err = services.Wrap(services.ErrPlacement, "place", "finalize", fr.FinalPath, err)
		return fr
	}

	fr.Outcome = OutcomePlaced
	return fr
}
