package summary

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"annualstatement/internal/docwriter"
	"annualstatement/internal/logging"
	"annualstatement/internal/naming"
	"annualstatement/internal/place"
)

func TestWriteSummaryWorkbook(t *testing.T) {
	root := t.TempDir()
	data := Data{
		Stamp:             "010525 0930",
		Mode:              "fresh",
		SourceDir:         "/data/in",
		TargetRoot:        root,
		TotalClients:      2,
		SuccessfulClients: 1,
		FailedClients:     1,
		TotalFiles:        3,
		Clients: []ClientStatus{
			{
				Client:       "ABC Ltd",
				Jurisdiction: "Maharashtra",
				Number:       1,
				Complete:     false,
				Missing:      []naming.Category{naming.CategoryIMSReco, naming.CategorySalesReco, naming.CategoryAnnualReport},
				FileCount:    3,
				Placed:       3,
			},
		},
		Mappings: []FileMapping{
			{
				SourceName:  "Sales-ABC Ltd-Maharashtra-Apr-Jun.xlsx",
				Client:      "ABC Ltd",
				Category:    naming.CategorySales,
				Destination: "/out/Sales related files/Sales-ABC_Ltd-Maharashtra-Apr-Jun.xlsx",
				Outcome:     place.OutcomePlaced,
			},
		},
		Errors: []ErrorRow{
			{Entity: "XYZ Traders", Destination: "/out/whatever.xlsx", Reason: "PLACEMENT_FAILED"},
		},
		Variations: []naming.NonConforming{
			{
				SourceName: "RandomFile.xlsx",
				Reason:     naming.ReasonNoPrefixMatch,
				Attempts: []naming.Attempt{
					{Category: naming.CategoryGSTR3B, Reason: naming.ReasonNoPrefixMatch},
				},
			},
		},
	}

	agg := NewAggregator(logging.NewNop(), docwriter.New(logging.NewNop()))
	output, err := agg.Write(context.Background(), data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(output) != "GST_Processing_Summary_010525_0930.xlsx" {
		t.Fatalf("output = %s", filepath.Base(output))
	}

	f, err := excelize.OpenFile(output)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 5 {
		t.Fatalf("sheets = %v", sheets)
	}
	for i, want := range []string{"Summary", "Client Status", "File Mapping", "Errors", "Variations"} {
		if sheets[i] != want {
			t.Fatalf("sheet %d = %q, want %q", i, sheets[i], want)
		}
	}

	got, err := f.GetCellValue("Client Status", "D2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Incomplete" {
		t.Fatalf("client status = %q", got)
	}

	got, err = f.GetCellValue("Variations", "A2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "RandomFile.xlsx" {
		t.Fatalf("variation = %q", got)
	}

	got, err = f.GetCellValue("Errors", "C2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "PLACEMENT_FAILED" {
		t.Fatalf("error reason = %q", got)
	}
}

func TestWriteSummaryEmptySections(t *testing.T) {
	root := t.TempDir()
	agg := NewAggregator(logging.NewNop(), docwriter.New(logging.NewNop()))

	output, err := agg.Write(context.Background(), Data{Stamp: "010525 0930", TargetRoot: root, Mode: "fresh"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenFile(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, err := f.GetCellValue("Errors", "A2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "No errors encountered" {
		t.Fatalf("errors placeholder = %q", got)
	}
	got, err = f.GetCellValue("Variations", "A2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "No file variations found" {
		t.Fatalf("variations placeholder = %q", got)
	}
}
