package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"annualstatement/internal/config"
	"annualstatement/internal/ledger"
	"annualstatement/internal/pipeline"
	"annualstatement/internal/services/refresh"
)

var stageLabels = map[pipeline.Stage]string{
	pipeline.StageScan:    "Scanning source folder",
	pipeline.StageResolve: "Resolving version history",
	pipeline.StagePlan:    "Planning folder layout",
	pipeline.StagePlace:   "Placing files",
	pipeline.StageReports: "Generating reports",
	pipeline.StageSummary: "Writing summary",
}

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string
	var clientFlags []string
	var sourceDir string
	var targetDir string

	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Organize classified spreadsheets into a versioned folder tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ledger.ParseMode(modeFlag)
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *ledger.Store, logger *slog.Logger) error {
				if dir := strings.TrimSpace(sourceDir); dir != "" {
					cfg.Paths.SourceDir = dir
				}
				if dir := strings.TrimSpace(targetDir); dir != "" {
					cfg.Paths.TargetDir = dir
				}

				manager, err := pipeline.New(cfg, store, logger, refresh.NewNoop())
				if err != nil {
					return err
				}

				events := make(chan pipeline.Event, 16)
				type runOutcome struct {
					result *pipeline.RunResult
					err    error
				}
				done := make(chan runOutcome, 1)
				go func() {
					result, runErr := manager.Run(cmd.Context(), pipeline.Options{
						Mode:       mode,
						ClientKeys: clientFlags,
						Events:     events,
					})
					close(events)
					done <- runOutcome{result: result, err: runErr}
				}()

				out := cmd.OutOrStdout()
				drainEvents(events, out, stdoutIsTerminal())
				outcome := <-done
				if outcome.err != nil {
					return outcome.err
				}

				printRunResult(out, outcome.result)
				if !outcome.result.Clean() {
					return fmt.Errorf("%d file(s) failed to place; see the summary workbook for details", outcome.result.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", string(ledger.ModeFresh), "Run mode: fresh, rerun, or resume")
	cmd.Flags().StringSliceVar(&clientFlags, "client", nil, "Restrict the run to the given client key (repeatable)")
	cmd.Flags().StringVar(&sourceDir, "source", "", "Override the configured source folder")
	cmd.Flags().StringVar(&targetDir, "target", "", "Override the configured target folder")
	return cmd
}

func drainEvents(events <-chan pipeline.Event, out io.Writer, interactive bool) {
	var bar *progressbar.ProgressBar
	var barStage pipeline.Stage
	lastStage := pipeline.Stage("")

	for ev := range events {
		label := stageLabels[ev.Stage]
		if label == "" {
			label = string(ev.Stage)
		}

		if !interactive {
			if ev.Stage != lastStage {
				fmt.Fprintf(out, "%s...\n", label)
				lastStage = ev.Stage
			}
			continue
		}

		if bar == nil || barStage != ev.Stage {
			if bar != nil {
				_ = bar.Finish()
				fmt.Fprintln(out)
			}
			bar = progressbar.NewOptions(ev.Total,
				progressbar.OptionSetWriter(out),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription(label),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "=",
					SaucerHead:    ">",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
			barStage = ev.Stage
		}
		_ = bar.Set(ev.Current)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(out)
	}
}

func printRunResult(out io.Writer, result *pipeline.RunResult) {
	rows := make([][]string, 0, len(result.Clients))
	for _, outcome := range result.Clients {
		rows = append(rows, []string{
			outcome.Plan.Key,
			fmt.Sprintf("%d", outcome.Number),
			fmt.Sprintf("%d", outcome.Placement.Placed),
			fmt.Sprintf("%d", outcome.Placement.Skipped),
			fmt.Sprintf("%d", outcome.Placement.Failed),
			fmt.Sprintf("%d", len(outcome.Reports)),
			yesNo(outcome.Finalized),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Client", "Version", "Placed", "Skipped", "Failed", "Reports", "Finalized"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))

	if result.RootDir != "" {
		fmt.Fprintf(out, "Organized into %s\n", result.RootDir)
	}
	if result.SummaryPath != "" {
		fmt.Fprintf(out, "Summary workbook: %s\n", filepath.Clean(result.SummaryPath))
	}
}
