package place

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"annualstatement/internal/logging"
	"annualstatement/internal/naming"
	"annualstatement/internal/plan"
	"annualstatement/internal/scan"
)

func buildPlan(t *testing.T, srcDir, targetDir string, names ...string) plan.ClientPlan {
	t.Helper()
	client := &scan.Client{Files: make(map[naming.Category][]scan.File)}
	for _, name := range names {
		classified, nonConforming := naming.Classify(name)
		if nonConforming != nil {
			t.Fatalf("fixture %q did not classify: %s", name, nonConforming.Reason)
		}
		if client.Name == "" {
			client.Name = classified.Client
			client.Jurisdiction = classified.Jurisdiction
			client.JurisdictionCode = classified.JurisdictionCode
			client.Key = classified.Key()
		}
		path := filepath.Join(srcDir, name)
		if err := os.WriteFile(path, []byte("workbook "+name), 0o644); err != nil {
			t.Fatal(err)
		}
		client.Files[classified.Category] = append(client.Files[classified.Category], scan.File{
			Path:       path,
			Classified: classified,
		})
	}
	now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	p := plan.Build(targetDir, now, []plan.Request{{Client: client, Number: 1}}, plan.Options{})
	return p.Clients[0]
}

func TestExecutePlacesFiles(t *testing.T) {
	srcDir, targetDir := t.TempDir(), t.TempDir()
	cp := buildPlan(t, srcDir, targetDir,
		"GSTR-2B-Reco-ABC Ltd-Maharashtra-Apr24.xlsx",
		"Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx",
	)

	result, err := New(logging.NewNop()).Execute(context.Background(), cp)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Placed != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if !result.Clean() {
		t.Fatal("expected clean result")
	}
	for _, fr := range result.Files {
		if _, err := os.Stat(fr.FinalPath); err != nil {
			t.Fatalf("missing placed file %s: %v", fr.FinalPath, err)
		}
	}

	// Sources are copied, never moved.
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("source folder mutated, %d entries left", len(entries))
	}
}

func TestExecuteResumeIdempotent(t *testing.T) {
	srcDir, targetDir := t.TempDir(), t.TempDir()
	cp := buildPlan(t, srcDir, targetDir, "Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx")
	placer := New(logging.NewNop())

	first, err := placer.Execute(context.Background(), cp)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Placed != 1 {
		t.Fatalf("first = %+v", first)
	}

	second, err := placer.Execute(context.Background(), cp)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Skipped != 1 || second.Placed != 0 {
		t.Fatalf("second = %+v", second)
	}

	dir := filepath.Dir(first.Files[0].FinalPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("duplicate files after resume: %d entries", len(entries))
	}
}

func TestExecuteBacksUpChangedFile(t *testing.T) {
	srcDir, targetDir := t.TempDir(), t.TempDir()
	cp := buildPlan(t, srcDir, targetDir, "Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx")
	placer := New(logging.NewNop())

	dest := cp.Entries[0].DestPath
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("stale earlier contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := placer.Execute(context.Background(), cp)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Placed != 1 {
		t.Fatalf("result = %+v", result)
	}
	fr := result.Files[0]
	if fr.BackupPath == "" {
		t.Fatal("expected a backup path")
	}
	backup, err := os.ReadFile(fr.BackupPath)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != "stale earlier contents" {
		t.Fatalf("backup content = %q", backup)
	}
	if !strings.Contains(filepath.Base(fr.BackupPath), "_backup_") {
		t.Fatalf("backup name = %s", filepath.Base(fr.BackupPath))
	}
}

func TestExecutePartialFailure(t *testing.T) {
	srcDir, targetDir := t.TempDir(), t.TempDir()
	cp := buildPlan(t, srcDir, targetDir,
		"GSTR-2B-Reco-ABC Ltd-Maharashtra-Apr24.xlsx",
		"Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx",
	)
	if err := os.Remove(cp.Entries[0].SourcePath); err != nil {
		t.Fatal(err)
	}

	result, err := New(logging.NewNop()).Execute(context.Background(), cp)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Failed != 1 || result.Placed != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Clean() {
		t.Fatal("expected unclean result")
	}
}

func TestExecuteConflictSuffix(t *testing.T) {
	srcDir, targetDir := t.TempDir(), t.TempDir()
	cp := buildPlan(t, srcDir, targetDir,
		"GSTR3B-ABC Ltd-Maharashtra-Apr.xlsx",
		"(1) GSTR3B-ABC Ltd-Maharashtra-Apr.xlsx",
	)

	result, err := New(logging.NewNop()).Execute(context.Background(), cp)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Placed != 2 {
		t.Fatalf("result = %+v", result)
	}

	collisions := 0
	finals := make(map[string]bool)
	for _, fr := range result.Files {
		if finals[fr.FinalPath] {
			t.Fatalf("two entries landed at %s", fr.FinalPath)
		}
		finals[fr.FinalPath] = true
		if fr.Collision {
			collisions++
			if !strings.HasSuffix(fr.FinalPath, "_1.xlsx") {
				t.Fatalf("collision path = %s, want an _1 suffix", fr.FinalPath)
			}
		}
	}
	if collisions != 1 {
		t.Fatalf("collisions = %d", collisions)
	}
}

func TestExecuteConflictResumeIdempotent(t *testing.T) {
	srcDir, targetDir := t.TempDir(), t.TempDir()
	cp := buildPlan(t, srcDir, targetDir,
		"GSTR3B-ABC Ltd-Maharashtra-Apr.xlsx",
		"(1) GSTR3B-ABC Ltd-Maharashtra-Apr.xlsx",
	)
	placer := New(logging.NewNop())

	first, err := placer.Execute(context.Background(), cp)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Placed != 2 {
		t.Fatalf("first = %+v", first)
	}

	for pass := 0; pass < 2; pass++ {
		again, err := placer.Execute(context.Background(), cp)
		if err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
		if again.Skipped != 2 || again.Placed != 0 {
			t.Fatalf("pass %d = %+v", pass, again)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(first.Files[0].FinalPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("duplicate files after resume: %d entries", len(entries))
	}
}

func TestExecuteCancelledBetweenFiles(t *testing.T) {
	srcDir, targetDir := t.TempDir(), t.TempDir()
	cp := buildPlan(t, srcDir, targetDir, "Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	placer := New(logging.NewNop())
	_, err := placer.Execute(ctx, cp)
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
