package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"annualstatement/internal/logging"
	"annualstatement/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestResolveModeFresh(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	res, err := store.ResolveMode(ctx, "ABC Ltd-MH", ModeFresh)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Number != 1 {
		t.Fatalf("number = %d, want 1", res.Number)
	}
}

func TestResolveModeRerunRequiresHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.ResolveMode(ctx, "ABC Ltd-MH", ModeRerun)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}

	v, err := store.BeginVersion(ctx, Version{
		ClientKey:    "ABC Ltd-MH",
		Client:       "ABC Ltd",
		Jurisdiction: "Maharashtra",
		Number:       1,
		FolderName:   "Version-010525 0930",
		RunID:        "run-1",
	})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.FinalizeVersion(ctx, v.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	res, err := store.ResolveMode(ctx, "ABC Ltd-MH", ModeRerun)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Number != 2 {
		t.Fatalf("number = %d, want 2", res.Number)
	}
}

func TestResolveModeResume(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.ResolveMode(ctx, "ABC Ltd-MH", ModeResume)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}

	begun, err := store.BeginVersion(ctx, Version{
		ClientKey:    "ABC Ltd-MH",
		Client:       "ABC Ltd",
		Jurisdiction: "Maharashtra",
		Number:       1,
		FolderName:   "Version-010525 0930",
		RunID:        "run-1",
	})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	res, err := store.ResolveMode(ctx, "ABC Ltd-MH", ModeResume)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Resumed == nil || res.Resumed.ID != begun.ID {
		t.Fatalf("resumed = %+v, want id %d", res.Resumed, begun.ID)
	}
	if res.Number != 1 {
		t.Fatalf("number = %d, want 1", res.Number)
	}

	if err := store.FinalizeVersion(ctx, begun.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	_, err = store.ResolveMode(ctx, "ABC Ltd-MH", ModeResume)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error after finalize", err)
	}
}

func TestVersionsForClientOrdering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		v, err := store.BeginVersion(ctx, Version{
			ClientKey:    "ABC Ltd-MH",
			Client:       "ABC Ltd",
			Jurisdiction: "Maharashtra",
			Number:       n,
			FolderName:   "Version-010525 0930",
			RunID:        "run",
		})
		if err != nil {
			t.Fatalf("begin %d: %v", n, err)
		}
		if n < 3 {
			if err := store.FinalizeVersion(ctx, v.ID); err != nil {
				t.Fatalf("finalize %d: %v", n, err)
			}
		}
	}

	versions, err := store.VersionsForClient(ctx, "ABC Ltd-MH")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("got %d versions", len(versions))
	}
	for i, v := range versions {
		if v.Number != i+1 {
			t.Fatalf("version %d has number %d", i, v.Number)
		}
	}
	if versions[0].FinalizedAt == nil || versions[2].FinalizedAt != nil {
		t.Fatal("finalized timestamps inconsistent")
	}
}

func TestParseMode(t *testing.T) {
	if _, err := ParseMode("fresh"); err != nil {
		t.Fatalf("fresh: %v", err)
	}
	if _, err := ParseMode("merge"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveLastUsed(ctx, LastUsedPaths{
		SourceDir: "/data/in",
		TargetDir: "/data/out",
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveLastUsed(ctx, LastUsedPaths{ITCTemplate: "/tpl/itc.xlsx"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	paths, err := store.LastUsed(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if paths.SourceDir != "/data/in" || paths.TargetDir != "/data/out" || paths.ITCTemplate != "/tpl/itc.xlsx" {
		t.Fatalf("paths = %+v", paths)
	}
	if paths.SalesTemplate != "" {
		t.Fatalf("unexpected sales template %q", paths.SalesTemplate)
	}
}

func TestCorruptDatabaseMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database at all, padded well past the header"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Open(dir, logging.NewNop())
	if err != nil {
		t.Fatalf("open over corrupt db: %v", err)
	}
	defer store.Close()

	versions, err := store.AllVersions(context.Background())
	if err != nil {
		t.Fatalf("all versions: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("expected empty history, got %d versions", len(versions))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	aside := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "ledger.db.corrupt") {
			aside = true
		}
	}
	if !aside {
		t.Fatal("corrupt database was not preserved aside")
	}
}

func TestAcquireRelease(t *testing.T) {
	store := openTestStore(t)

	if err := store.Acquire("ABC Ltd-MH", "run-1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := store.Acquire("ABC Ltd-MH", "run-2"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}

	store.Release("ABC Ltd-MH", "run-2")
	if err := store.Acquire("ABC Ltd-MH", "run-2"); err == nil {
		t.Fatal("release by non-holder should not free the lock")
	}

	store.Release("ABC Ltd-MH", "run-1")
	if err := store.Acquire("ABC Ltd-MH", "run-2"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}
