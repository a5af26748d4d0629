// Package docwriter produces xlsx documents through a write-verify-finalize
// protocol: all work happens on a temp file in the output directory, the
// result is re-opened and checked, and only then renamed into place. A
// corrupted or half-written file is never visible under the final name.
package docwriter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"annualstatement/internal/fileutil"
	"annualstatement/internal/logging"
	"annualstatement/internal/services"
)

const tempPrefix = ".astmp-"

// Spec names the sheet and the cells to populate on it. Only the mapped
// cells are touched; the rest of the template rides through untouched.
type Spec struct {
	Sheet string
	Cells map[string]string
}

// Writer writes xlsx documents safely.
type Writer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// WriteFromTemplate copies the template beside outputPath, populates the
// mapped cells, verifies the saved result, and atomically renames it into
// place. The temp file is removed on any failure and outputPath is left
// untouched.
func (w *Writer) WriteFromTemplate(ctx context.Context, templatePath string, spec Spec, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "prepare", outputPath, err)
	}

	temp := tempPath(outputPath)
	if err := fileutil.CopyFileVerified(templatePath, temp); err != nil {
		_ = os.Remove(temp)
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "copy_template", templatePath, err)
	}

	if err := w.populate(temp, spec); err != nil {
		_ = os.Remove(temp)
		return err
	}
	if err := w.verifyCells(temp, spec); err != nil {
		_ = os.Remove(temp)
		return err
	}

	if err := os.Rename(temp, outputPath); err != nil {
		_ = os.Remove(temp)
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "finalize", outputPath, err)
	}

	w.logger.Info("document written",
		logging.String("output", outputPath),
		logging.Int("cells", len(spec.Cells)))
	return nil
}

// WriteBuilt saves a workbook assembled in memory by build, verifies the
// named sheets survived the save, and renames the result into place.
func (w *Writer) WriteBuilt(ctx context.Context, build func(*excelize.File) error, wantSheets []string, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "prepare", outputPath, err)
	}

	f := excelize.NewFile()
	if err := build(f); err != nil {
		_ = f.Close()
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "build", outputPath, err)
	}

	temp := tempPath(outputPath)
	if err := f.SaveAs(temp); err != nil {
		_ = f.Close()
		_ = os.Remove(temp)
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "save", temp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(temp)
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "close", temp, err)
	}

	if err := verifySheets(temp, wantSheets); err != nil {
		_ = os.Remove(temp)
		return err
	}

	if err := os.Rename(temp, outputPath); err != nil {
		_ = os.Remove(temp)
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "finalize", outputPath, err)
	}

	w.logger.Info("document written", logging.String("output", outputPath))
	return nil
}

func (w *Writer) populate(path string, spec Spec) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "open_template", path, err)
	}
	defer func() { _ = f.Close() }()

	sheet, err := findSheet(f, spec.Sheet)
	if err != nil {
		return err
	}
	if sheet != spec.Sheet {
		w.logger.Warn("using fallback sheet",
			logging.String("requested", spec.Sheet),
			logging.String("sheet", sheet))
	}

	for cell, value := range spec.Cells {
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return services.Wrap(services.ErrDocumentWrite, "docwriter", "set_cell",
				fmt.Sprintf("%s!%s", sheet, cell), err)
		}
	}

	if err := f.Save(); err != nil {
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "save", path, err)
	}
	return nil
}

// verifyCells re-opens the saved file and checks it parses and that every
// mapped cell holds the expected value.
func (w *Writer) verifyCells(path string, spec Spec) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "verify_open", path, err)
	}
	defer func() { _ = f.Close() }()

	sheet, err := findSheet(f, spec.Sheet)
	if err != nil {
		return err
	}
	for cell, want := range spec.Cells {
		got, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return services.Wrap(services.ErrDocumentWrite, "docwriter", "verify_cell",
				fmt.Sprintf("%s!%s", sheet, cell), err)
		}
		if got != want {
			return services.Wrap(services.ErrDocumentWrite, "docwriter", "verify_cell",
				fmt.Sprintf("%s!%s holds %q, expected %q", sheet, cell, got, want), nil)
		}
	}
	return nil
}

func verifySheets(path string, wantSheets []string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return services.Wrap(services.ErrDocumentWrite, "docwriter", "verify_open", path, err)
	}
	defer func() { _ = f.Close() }()

	have := make(map[string]struct{})
	for _, name := range f.GetSheetList() {
		have[name] = struct{}{}
	}
	for _, want := range wantSheets {
		if _, ok := have[want]; !ok {
			return services.Wrap(services.ErrDocumentWrite, "docwriter", "verify_sheets",
				fmt.Sprintf("sheet %q missing after save", want), nil)
		}
	}
	return nil
}

// findSheet resolves the target sheet case-insensitively, falling back to
// any sheet whose name contains "link".
func findSheet(f *excelize.File, want string) (string, error) {
	sheets := f.GetSheetList()
	for _, name := range sheets {
		if strings.EqualFold(name, want) {
			return name, nil
		}
	}
	for _, name := range sheets {
		if strings.Contains(strings.ToLower(name), "link") {
			return name, nil
		}
	}
	return "", services.Wrap(services.ErrDocumentWrite, "docwriter", "find_sheet",
		fmt.Sprintf("no sheet matching %q", want), nil)
}

func tempPath(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), tempPrefix+filepath.Base(outputPath))
}
