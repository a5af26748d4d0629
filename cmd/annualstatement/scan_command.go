package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"annualstatement/internal/naming"
	"annualstatement/internal/scan"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var sourceDir string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Classify the source folder without moving anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			dir := strings.TrimSpace(sourceDir)
			if dir == "" {
				dir = cfg.Paths.SourceDir
			}

			scanner := scan.NewScanner(logger)
			result, err := scanner.Scan(cmd.Context(), dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %s: %d entries, %d classified, %d non-conforming, %d skipped\n\n",
				result.SourceDir, result.Stats.Entries, result.Stats.Classified,
				result.Stats.NonConforming, result.Stats.Skipped)

			if len(result.Clients) > 0 {
				rows := make([][]string, 0, len(result.Clients))
				for _, client := range result.Clients {
					rows = append(rows, []string{
						client.Key,
						client.Jurisdiction,
						fmt.Sprintf("%d", client.FileCount()),
						categoriesLabel(client.Missing),
						categoriesLabel(client.Duplicates),
						clientStatus(client),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Client", "Jurisdiction", "Files", "Missing", "Duplicates", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
			}

			if len(result.NonConforming) > 0 {
				rows := make([][]string, 0, len(result.NonConforming))
				for _, nc := range result.NonConforming {
					rows = append(rows, []string{nc.SourceName, string(nc.Reason)})
				}
				fmt.Fprintln(out, "File variations:")
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Reason"},
					rows,
					[]columnAlignment{alignLeft, alignLeft},
				))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&sourceDir, "source", "", "Source folder to scan (defaults to the configured source_dir)")
	return cmd
}

func categoriesLabel(values []naming.Category) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func clientStatus(client *scan.Client) string {
	if client.Complete {
		return "Complete"
	}
	return "Incomplete"
}
