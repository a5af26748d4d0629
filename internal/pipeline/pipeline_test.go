package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"annualstatement/internal/config"
	"annualstatement/internal/ledger"
	"annualstatement/internal/logging"
	"annualstatement/internal/services"
)

func writeSpreadsheet(t *testing.T, dir, name string) {
	t.Helper()
	content := append([]byte{0x50, 0x4b, 0x03, 0x04}, make([]byte, 1024)...)
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeTemplate(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet("Links"); err != nil {
		t.Fatal(err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func newManager(t *testing.T) (*Manager, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SourceDir = filepath.Join(dir, "in")
	cfg.Paths.TargetDir = filepath.Join(dir, "out")
	cfg.Paths.ITCTemplate = filepath.Join(dir, "itc.xlsx")
	cfg.Paths.SalesTemplate = filepath.Join(dir, "sales.xlsx")
	cfg.Paths.LedgerDir = filepath.Join(dir, "ledger")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	if err := os.MkdirAll(cfg.Paths.SourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Paths.LedgerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTemplate(t, cfg.Paths.ITCTemplate)
	writeTemplate(t, cfg.Paths.SalesTemplate)

	store, err := ledger.Open(cfg.Paths.LedgerDir, logging.NewNop())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m, err := New(&cfg, store, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.now = func() time.Time { return time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC) }
	return m, &cfg
}

func TestRunFreshScenario(t *testing.T) {
	m, cfg := newManager(t)
	for _, name := range []string{
		"GSTR-2B-Reco-ABC Ltd-Maharashtra-Apr24.xlsx",
		"GSTR3B-ABC Ltd-Maharashtra-Apr24.xlsx",
		"Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx",
		"RandomFile.xlsx",
	} {
		writeSpreadsheet(t, cfg.Paths.SourceDir, name)
	}

	result, err := m.Run(context.Background(), Options{Mode: ledger.ModeFresh})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Clean() {
		t.Fatalf("failures = %d", result.Failed)
	}
	if len(result.Clients) != 1 {
		t.Fatalf("clients = %d", len(result.Clients))
	}

	version := filepath.Join(cfg.Paths.TargetDir, "Annual Statement-010525 0930", "ABC Ltd-MH", "Version-010525 0930")
	for _, want := range []string{
		filepath.Join(version, "Other ITC related files", "GSTR-2B-Reco-ABC_Ltd-Maharashtra-Apr24.xlsx"),
		filepath.Join(version, "GSTR-3B Exports", "GSTR3B-ABC_Ltd-Maharashtra-Apr24.xlsx"),
		filepath.Join(version, "Sales related files", "Sales-ABC_Ltd-Maharashtra-Apr-Jun.xlsx"),
	} {
		if _, err := os.Stat(want); err != nil {
			t.Fatalf("expected %s: %v", want, err)
		}
	}

	// The non-conforming file is reported, never placed.
	if len(result.Scan.NonConforming) != 1 || result.Scan.NonConforming[0].SourceName != "RandomFile.xlsx" {
		t.Fatalf("non-conforming = %+v", result.Scan.NonConforming)
	}
	matches, err := filepath.Glob(filepath.Join(cfg.Paths.TargetDir, "*", "*", "*", "*", "RandomFile.xlsx"))
	if err != nil || len(matches) != 0 {
		t.Fatalf("RandomFile placed: %v %v", matches, err)
	}

	outcome := result.Clients[0]
	if !outcome.Finalized {
		t.Fatal("clean placement must finalize the version")
	}
	if len(outcome.Reports) != 2 {
		t.Fatalf("reports = %v (err %v)", outcome.Reports, outcome.ReportErr)
	}
	if result.SummaryPath == "" {
		t.Fatal("summary not written")
	}
	if _, err := os.Stat(result.SummaryPath); err != nil {
		t.Fatalf("summary missing: %v", err)
	}

	// Incomplete client status lands in the summary data.
	scanned := result.Scan.Client("ABC Ltd-MH")
	if scanned == nil || scanned.Complete {
		t.Fatal("expected incomplete client")
	}
	if len(scanned.Missing) != 3 {
		t.Fatalf("missing = %v", scanned.Missing)
	}
}

func TestRunResumeWithoutHistory(t *testing.T) {
	m, cfg := newManager(t)
	writeSpreadsheet(t, cfg.Paths.SourceDir, "Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx")

	_, err := m.Run(context.Background(), Options{Mode: ledger.ModeResume})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}

	// Zero files touched: the target holds nothing but the folder itself.
	entries, readErr := os.ReadDir(cfg.Paths.TargetDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("target mutated: %v", entries)
	}
}

func TestRunRerunIncrementsVersion(t *testing.T) {
	m, cfg := newManager(t)
	writeSpreadsheet(t, cfg.Paths.SourceDir, "Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx")
	ctx := context.Background()

	first, err := m.Run(ctx, Options{Mode: ledger.ModeFresh})
	if err != nil {
		t.Fatalf("fresh: %v", err)
	}
	if first.Clients[0].Number != 1 {
		t.Fatalf("first number = %d", first.Clients[0].Number)
	}

	m.now = func() time.Time { return time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC) }
	second, err := m.Run(ctx, Options{Mode: ledger.ModeRerun})
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if second.Clients[0].Number != 2 {
		t.Fatalf("second number = %d", second.Clients[0].Number)
	}

	// Prior version contents untouched.
	prior := first.Clients[0].Plan.VersionDir
	if _, err := os.Stat(filepath.Join(prior, "Sales related files", "Sales-ABC_Ltd-Maharashtra-Apr-Jun.xlsx")); err != nil {
		t.Fatalf("prior version mutated: %v", err)
	}
}

func TestRunResumeIdempotent(t *testing.T) {
	m, cfg := newManager(t)
	writeSpreadsheet(t, cfg.Paths.SourceDir, "Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx")
	writeSpreadsheet(t, cfg.Paths.SourceDir, "AnnualReport-ABC Ltd-Maharashtra-2024.xlsx")
	ctx := context.Background()

	first, err := m.Run(ctx, Options{Mode: ledger.ModeFresh})
	if err != nil {
		t.Fatalf("fresh: %v", err)
	}

	// Record an interrupted follow-up version pointing at the same folder,
	// as a cancelled run would have left it.
	rel, err := filepath.Rel(cfg.Paths.TargetDir, first.Clients[0].Plan.VersionDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.store.BeginVersion(ctx, ledger.Version{
		ClientKey:    "ABC Ltd-MH",
		Client:       "ABC Ltd",
		Jurisdiction: "Maharashtra",
		Number:       2,
		FolderName:   rel,
		RunID:        "interrupted",
	}); err != nil {
		t.Fatal(err)
	}

	salesDir := filepath.Join(first.Clients[0].Plan.VersionDir, "Sales related files")
	before, err := os.ReadDir(salesDir)
	if err != nil {
		t.Fatal(err)
	}

	resumed, err := m.Run(ctx, Options{Mode: ledger.ModeResume})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Clients[0].Placement.Skipped != 2 || resumed.Clients[0].Placement.Placed != 0 {
		t.Fatalf("placement = %+v", resumed.Clients[0].Placement)
	}

	after, err := os.ReadDir(salesDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("file count changed on resume: %d -> %d", len(before), len(after))
	}
}

func TestRunEventsOrdered(t *testing.T) {
	m, cfg := newManager(t)
	writeSpreadsheet(t, cfg.Paths.SourceDir, "Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx")

	events := make(chan Event, 256)
	done := make(chan []Event)
	go func() {
		var seen []Event
		for e := range events {
			seen = append(seen, e)
		}
		done <- seen
	}()

	_, err := m.Run(context.Background(), Options{Mode: ledger.ModeFresh, Events: events})
	close(events)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	seen := <-done
	if len(seen) == 0 {
		t.Fatal("no events")
	}
	order := map[Stage]int{StageScan: 0, StageResolve: 1, StagePlan: 2, StagePlace: 3, StageReports: 4, StageSummary: 5}
	last := -1
	for _, e := range seen {
		rank, ok := order[e.Stage]
		if !ok {
			t.Fatalf("unknown stage %q", e.Stage)
		}
		if rank < last {
			t.Fatalf("stage %q out of order", e.Stage)
		}
		last = rank
	}
}

func TestRunUnknownClientFilter(t *testing.T) {
	m, cfg := newManager(t)
	writeSpreadsheet(t, cfg.Paths.SourceDir, "Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx")

	_, err := m.Run(context.Background(), Options{Mode: ledger.ModeFresh, ClientKeys: []string{"Nobody-XX"}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestRunContinuesAfterClientFailure(t *testing.T) {
	m, cfg := newManager(t)
	writeSpreadsheet(t, cfg.Paths.SourceDir, "GSTR3B-ABC Ltd-Maharashtra-Apr24.xlsx")
	writeSpreadsheet(t, cfg.Paths.SourceDir, "GSTR3B-XYZ Traders-Karnataka-Apr24.xlsx")

	// A file squatting on the first client's folder makes its placement
	// pass abort; the second client must still be organized.
	root := filepath.Join(cfg.Paths.TargetDir, "Annual Statement-010525 0930")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "ABC Ltd-MH"), []byte("in the way"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := m.Run(context.Background(), Options{Mode: ledger.ModeFresh})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Clients) != 2 {
		t.Fatalf("clients = %d, want 2", len(result.Clients))
	}
	if result.Clean() || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	for _, outcome := range result.Clients {
		switch outcome.Plan.Key {
		case "ABC Ltd-MH":
			if outcome.ClientErr == nil {
				t.Fatal("expected a client error for the blocked folder")
			}
			if outcome.Finalized {
				t.Fatal("blocked client must not finalize")
			}
		case "XYZ Traders-KA":
			if outcome.ClientErr != nil || !outcome.Finalized || outcome.Placement.Placed != 1 {
				t.Fatalf("unblocked client outcome = %+v", outcome)
			}
		default:
			t.Fatalf("unexpected client %q", outcome.Plan.Key)
		}
	}
}
