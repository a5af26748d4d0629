package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"annualstatement/internal/services"
)

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	if fields := ContextFields(ctx); len(fields) != 0 {
		t.Fatalf("empty context produced fields: %v", fields)
	}

	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithStage(ctx, "place")
	ctx = services.WithClientKey(ctx, "ABC Ltd-MH")

	fields := ContextFields(ctx)
	if len(fields) != 3 {
		t.Fatalf("fields = %v, want 3", fields)
	}
	got := make(map[string]string, len(fields))
	for _, f := range fields {
		got[f.Key] = f.Value.String()
	}
	if got[FieldRunID] != "run-1" || got[FieldStage] != "place" || got[FieldClientKey] != "ABC Ltd-MH" {
		t.Fatalf("fields = %v", got)
	}
}

func TestWithContextEnrichesRecords(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := services.WithRunID(context.Background(), "run-7")
	ctx = services.WithClientKey(ctx, "XYZ Traders-KA")

	WithContext(ctx, base).Info("placing file")

	out := buf.String()
	if !strings.Contains(out, "run_id=run-7") {
		t.Fatalf("run id missing from record: %s", out)
	}
	if !strings.Contains(out, "XYZ Traders-KA") {
		t.Fatalf("client key missing from record: %s", out)
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected a usable logger")
	}
	logger.Info("discarded")
}
