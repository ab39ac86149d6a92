package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/cli"
	"github.com/Veraticus/autoledger/internal/storage"
)

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect debug records",
		Long: `List and inspect the debug records written for every processed notification.

Examples:
  autoledger records list --status FAILED_PARSE --since 24h
  autoledger records show 6f1c...`,
	}

	cmd.AddCommand(recordsListCmd())
	cmd.AddCommand(recordsShowCmd())

	return cmd
}

func recordsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List debug records, newest first",
		Args:  cobra.NoArgs,
		RunE:  runRecordsList,
	}

	cmd.Flags().String("status", "", "only records with this status")
	cmd.Flags().String("app", "", "only records from this package")
	cmd.Flags().String("since", "", "only records newer than this (e.g. 24h, 7d)")
	cmd.Flags().Int("limit", 50, "maximum records to show (0 for all)")
	cmd.Flags().Bool("json", false, "print records as JSON")

	return cmd
}

func recordFilterFromFlags(cmd *cobra.Command, now time.Time) (storage.RecordFilter, error) {
	var filter storage.RecordFilter

	if s, _ := cmd.Flags().GetString("status"); s != "" {
		status, err := audit.ParseStatus(s)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	filter.SourceApp, _ = cmd.Flags().GetString("app")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	if filter.Limit < 0 {
		return filter, fmt.Errorf("--limit must not be negative")
	}

	sinceFlag, _ := cmd.Flags().GetString("since")
	since, err := parseSince(sinceFlag, now)
	if err != nil {
		return filter, err
	}
	filter.Since = since
	return filter, nil
}

func runRecordsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	asJSON, _ := cmd.Flags().GetBool("json")

	filter, err := recordFilterFromFlags(cmd, time.Now())
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

	records, err := store.ListDebugRecords(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list debug records: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []*audit.Record{}
		}
		return enc.Encode(records)
	}
	_, err = fmt.Fprintln(out, cli.RenderRecords(records))
	return err
}

func recordsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one debug record in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rec, err := store.GetDebugRecord(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRecordDetail(rec))
			return err
		},
	}
}
