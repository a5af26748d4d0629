// Package report generates the per-client ITC and Sales workbooks from a
// template, feeding placement results into the template's link cells.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"annualstatement/internal/config"
	"annualstatement/internal/docwriter"
	"annualstatement/internal/logging"
	"annualstatement/internal/naming"
	"annualstatement/internal/place"
	"annualstatement/internal/plan"
	"annualstatement/internal/services/refresh"
)

// Kind selects which report a call produces.
type Kind string

const (
	KindITC   Kind = "ITC"
	KindSales Kind = "Sales"
)

// Generator writes per-client reports through the safe document writer and
// optionally asks the refresh service to re-pull the workbook's data
// connections afterward.
type Generator struct {
	logger    *slog.Logger
	writer    *docwriter.Writer
	refresher refresh.Service
	doRefresh bool
}

func NewGenerator(logger *slog.Logger, writer *docwriter.Writer, refresher refresh.Service, doRefresh bool) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if refresher == nil {
		refresher = refresh.NewNoop()
	}
	return &Generator{logger: logger, writer: writer, refresher: refresher, doRefresh: doRefresh}
}

// Input carries everything a report needs: the client's plan and what the
// placer actually did with it.
type Input struct {
	Plan      plan.ClientPlan
	Placement place.Result
	Stamp     string
}

// OutputName returns the report filename for a client, e.g.
// ITC_Report_ABC_Ltd_MH_010525_0930.xlsx.
func OutputName(kind Kind, client, jurisdictionCode, stamp string) string {
	safeClient := naming.SanitizeFilename(client)
	safeStamp := strings.ReplaceAll(stamp, " ", "_")
	return fmt.Sprintf("%s_Report_%s_%s_%s.xlsx", kind, safeClient, jurisdictionCode, safeStamp)
}

// Generate writes one report into the client's version folder and returns
// its path. Refresh problems are logged, never fatal; a report that cannot
// be written is.
func (g *Generator) Generate(ctx context.Context, kind Kind, templatePath string, mapping config.TemplateMapping, in Input) (string, error) {
	fields := Fields(kind, in)
	spec := docwriter.Spec{Sheet: mapping.Sheet, Cells: make(map[string]string, len(mapping.Cells))}
	for cell, field := range mapping.Cells {
		spec.Cells[cell] = fields[field]
	}

	output := filepath.Join(in.Plan.VersionDir, OutputName(kind, in.Plan.Client, in.Plan.JurisdictionCode, in.Stamp))
	if err := g.writer.WriteFromTemplate(ctx, templatePath, spec, output); err != nil {
		return "", err
	}

	if g.doRefresh {
		g.refreshDocument(ctx, output)
	}
	return output, nil
}

func (g *Generator) refreshDocument(ctx context.Context, path string) {
	logger := logging.WithContext(ctx, g.logger)
	if !g.refresher.Available() {
		logger.Info("refresh skipped", logging.String("document", path))
		return
	}
	if err := g.refresher.Refresh(ctx, path); err != nil {
		logger.Warn("refresh failed",
			logging.String("document", path),
			logging.Error(err))
	}
}

// Fields resolves the template field values for one client. Categories with
// no placed file yield empty strings so the template's cells are blanked
// rather than left stale.
func Fields(kind Kind, in Input) map[string]string {
	fields := map[string]string{
		"gstr3b_folder":       "",
		"annual_folder":       "",
		"annual_filename":     "",
		"gstr2b_folder":       "",
		"gstr2b_filename":     "",
		"ims_folder":          "",
		"ims_filename":        "",
		"sales_folder":        "",
		"sales_filename":      "",
		"sales_reco_folder":   "",
		"sales_reco_filename": "",
	}

	final := finalNames(in)

	switch kind {
	case KindITC:
		fields["gstr3b_folder"] = in.Plan.GSTR3BDir
		if name, ok := final[naming.CategoryAnnualReport]; ok {
			fields["annual_folder"] = in.Plan.VersionDir
			fields["annual_filename"] = stem(name)
		}
		if name, ok := final[naming.CategoryGSTR2BReco]; ok {
			fields["gstr2b_folder"] = in.Plan.ITCDir
			fields["gstr2b_filename"] = stem(name)
		}
		if name, ok := final[naming.CategoryIMSReco]; ok {
			fields["ims_folder"] = in.Plan.ITCDir
			fields["ims_filename"] = stem(name)
		}
	case KindSales:
		if name, ok := final[naming.CategorySales]; ok {
			fields["sales_folder"] = in.Plan.SalesDir
			fields["sales_filename"] = stem(name)
		}
		if name, ok := final[naming.CategoryAnnualReport]; ok {
			fields["annual_folder"] = in.Plan.VersionDir
			fields["annual_filename"] = stem(name)
		}
		if name, ok := final[naming.CategorySalesReco]; ok {
			fields["sales_reco_folder"] = in.Plan.SalesDir
			fields["sales_reco_filename"] = stem(name)
		}
	}
	return fields
}

// finalNames maps each category to the first successfully landed filename.
func finalNames(in Input) map[naming.Category]string {
	names := make(map[naming.Category]string)
	for _, fr := range in.Placement.Files {
		if fr.Outcome == place.OutcomeFailed {
			continue
		}
		category := fr.Entry.Category
		if _, ok := names[category]; ok {
			continue
		}
		names[category] = filepath.Base(fr.FinalPath)
	}
	return names
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
