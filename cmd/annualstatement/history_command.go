package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"annualstatement/internal/config"
	"annualstatement/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history [client-key]",
		Short: "Show recorded organization versions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store, logger *slog.Logger) error {
				var versions []ledger.Version
				var err error
				if len(args) == 1 {
					versions, err = store.VersionsForClient(cmd.Context(), args[0])
				} else {
					versions, err = store.AllVersions(cmd.Context())
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(versions) == 0 {
					fmt.Fprintln(out, "No versions recorded")
					return nil
				}

				rows := make([][]string, 0, len(versions))
				for _, v := range versions {
					rows = append(rows, []string{
						v.ClientKey,
						fmt.Sprintf("%d", v.Number),
						v.FolderName,
						v.CreatedAt.Local().Format(time.DateTime),
						finalizedLabel(v),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Client", "Version", "Folder", "Created", "Finalized"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func finalizedLabel(v ledger.Version) string {
	if !v.Finalized {
		return "no"
	}
	if v.FinalizedAt == nil {
		return "yes"
	}
	return v.FinalizedAt.Local().Format(time.DateTime)
}
