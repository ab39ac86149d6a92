package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/autoledger/internal/cli"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show processing outcomes by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sinceFlag, _ := cmd.Flags().GetString("since")
			asJSON, _ := cmd.Flags().GetBool("json")

			since, err := parseSince(sinceFlag, time.Now())
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			counts, err := store.CountByStatus(ctx, since)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(counts)
			}

			title := "Processing outcomes"
			if !since.IsZero() {
				title += " since " + since.Local().Format(time.DateTime)
			}
			_, err = fmt.Fprintln(out, cli.TitleStyle.Render(cli.ChartIcon+" "+title)+"\n"+cli.RenderStatusCounts(counts))
			return err
		},
	}

	cmd.Flags().String("since", "", "only count records newer than this (e.g. 24h, 7d)")
	cmd.Flags().Bool("json", false, "print counts as JSON")

	return cmd
}
