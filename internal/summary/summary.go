// Package summary composes the run summary workbook: overall statistics,
// per-client status, the full source-to-destination mapping, the error list,
// and the non-conforming variations. Everything comes from in-memory run
// results; the disk is never re-scanned.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"annualstatement/internal/docwriter"
	"annualstatement/internal/naming"
	"annualstatement/internal/place"
)

// Sheet names, fixed.
var sheetNames = []string{"Summary", "Client Status", "File Mapping", "Errors", "Variations"}

// ClientStatus is one row of the Client Status sheet.
type ClientStatus struct {
	Client       string
	Jurisdiction string
	Number       int
	Complete     bool
	Missing      []naming.Category
	FileCount    int
	Placed       int
	Skipped      int
	Failed       int
}

// FileMapping is one row of the File Mapping sheet.
type FileMapping struct {
	SourceName  string
	Client      string
	Category    naming.Category
	Destination string
	Outcome     place.Outcome
}

// ErrorRow is one row of the Errors sheet: reason codes, not prose.
type ErrorRow struct {
	Entity      string
	Destination string
	Reason      string
}

// Data is everything the summary workbook is built from.
type Data struct {
	Stamp             string
	Mode              string
	SourceDir         string
	TargetRoot        string
	IncludeClientName bool
	TotalClients      int
	SuccessfulClients int
	FailedClients     int
	TotalFiles        int
	ReportsGenerated  int
	ReportErrors      int
	Clients           []ClientStatus
	Mappings          []FileMapping
	Errors            []ErrorRow
	Variations        []naming.NonConforming
}

// OutputName returns the summary workbook filename for a run stamp.
func OutputName(stamp string) string {
	return fmt.Sprintf("GST_Processing_Summary_%s.xlsx", strings.ReplaceAll(stamp, " ", "_"))
}

// Aggregator writes summary workbooks through the safe document writer.
type Aggregator struct {
	logger *slog.Logger
	writer *docwriter.Writer
}

func NewAggregator(logger *slog.Logger, writer *docwriter.Writer) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger, writer: writer}
}

// Write builds the workbook into the run root folder and returns its path.
func (a *Aggregator) Write(ctx context.Context, data Data) (string, error) {
	output := filepath.Join(data.TargetRoot, OutputName(data.Stamp))
	err := a.writer.WriteBuilt(ctx, func(f *excelize.File) error {
		return buildWorkbook(f, data)
	}, sheetNames, output)
	if err != nil {
		return "", err
	}
	return output, nil
}

func buildWorkbook(f *excelize.File, data Data) error {
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for _, name := range sheetNames {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if err := buildSummarySheet(f, data, header); err != nil {
		return err
	}
	if err := buildClientStatusSheet(f, data, header); err != nil {
		return err
	}
	if err := buildFileMappingSheet(f, data, header); err != nil {
		return err
	}
	if err := buildErrorsSheet(f, data, header); err != nil {
		return err
	}
	return buildVariationsSheet(f, data, header)
}

func buildSummarySheet(f *excelize.File, data Data, header int) error {
	const sheet = "Summary"
	if err := f.SetCellValue(sheet, "A1", "GST FILE PROCESSING SUMMARY"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", header); err != nil {
		return err
	}

	rows := []struct {
		label string
		value any
	}{
		{"Processing Date", data.Stamp},
		{"Processing Mode", data.Mode},
		{"Source Folder", data.SourceDir},
		{"Target Folder", data.TargetRoot},
		{"Total Clients", data.TotalClients},
		{"Successful", data.SuccessfulClients},
		{"Failed", data.FailedClients},
		{"Total Files", data.TotalFiles},
		{"Reports Generated", data.ReportsGenerated},
		{"Report Creation Errors", data.ReportErrors},
		{"Include Client Name in Folders", yesNo(data.IncludeClientName)},
	}
	for i, row := range rows {
		n := i + 3
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", n), row.label); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", n), fmt.Sprintf("A%d", n), header); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", n), row.value); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "B", 40)
}

func buildClientStatusSheet(f *excelize.File, data Data, header int) error {
	const sheet = "Client Status"
	if err := writeHeader(f, sheet, header, "Client", "Jurisdiction", "Version", "Status", "Files", "Missing Categories"); err != nil {
		return err
	}
	for i, c := range data.Clients {
		status := "Complete"
		if c.Failed > 0 {
			status = "Failed"
		} else if !c.Complete {
			status = "Incomplete"
		}
		missing := make([]string, 0, len(c.Missing))
		for _, m := range c.Missing {
			missing = append(missing, string(m))
		}
		if err := writeRow(f, sheet, i+2,
			c.Client, c.Jurisdiction, c.Number, status, c.FileCount, strings.Join(missing, ", ")); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "F", 30)
}

func buildFileMappingSheet(f *excelize.File, data Data, header int) error {
	const sheet = "File Mapping"
	if err := writeHeader(f, sheet, header, "Original File", "Client", "Category", "Destination", "Status"); err != nil {
		return err
	}
	for i, m := range data.Mappings {
		if err := writeRow(f, sheet, i+2,
			m.SourceName, m.Client, string(m.Category), m.Destination, string(m.Outcome)); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "E", 45)
}

func buildErrorsSheet(f *excelize.File, data Data, header int) error {
	const sheet = "Errors"
	if err := writeHeader(f, sheet, header, "Entity", "Destination Attempted", "Reason"); err != nil {
		return err
	}
	if len(data.Errors) == 0 {
		return f.SetCellValue(sheet, "A2", "No errors encountered")
	}
	for i, e := range data.Errors {
		if err := writeRow(f, sheet, i+2, e.Entity, e.Destination, e.Reason); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "C", 45)
}

func buildVariationsSheet(f *excelize.File, data Data, header int) error {
	const sheet = "Variations"
	if err := writeHeader(f, sheet, header, "Filename", "Reason", "Patterns Attempted"); err != nil {
		return err
	}
	if len(data.Variations) == 0 {
		return f.SetCellValue(sheet, "A2", "No file variations found")
	}
	for i, v := range data.Variations {
		attempts := make([]string, 0, len(v.Attempts))
		for _, a := range v.Attempts {
			attempts = append(attempts, fmt.Sprintf("%s (%s)", naming.Describe(a.Category), a.Reason))
		}
		if err := writeRow(f, sheet, i+2, v.SourceName, string(v.Reason), strings.Join(attempts, "; ")); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "C", 50)
}

func writeHeader(f *excelize.File, sheet string, style int, columns ...string) error {
	for i, column := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, column); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, value := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return err
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
