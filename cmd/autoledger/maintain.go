package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/autoledger/internal/cli"
)

func maskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Mask sensitive text in old debug records",
		Long: `Redact notification title, text, raw text and merchant of debug records
older than the given age. Amount, direction, status and confidence are kept.
Masking cannot be undone. The default age comes from audit.mask_after.`,
		Args: cobra.NoArgs,
		RunE: runMask,
	}

	cmd.Flags().Duration("older-than", 0, "mask records older than this (default audit.mask_after)")
	cmd.Flags().Bool("all", false, "mask every record regardless of age")

	return cmd
}

func runMask(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	all, _ := cmd.Flags().GetBool("all")
	olderThan, _ := cmd.Flags().GetDuration("older-than")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("older-than") {
		olderThan = cfg.Audit.MaskAfter
	}
	if olderThan < 0 {
		return fmt.Errorf("--older-than must not be negative")
	}

	cutoff := time.Now().Add(-olderThan)
	if all {
		cutoff = time.Now().Add(time.Minute)
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.MaskRecordsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to mask records: %w", err)
	}

	slog.Info("Masked debug records", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Masked %d debug records", n)))
	return err
}

func pruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Forget old dedup entries",
		Long: `Delete dedup entries remembered before the given age. Pruned notifications
are no longer recognized as duplicates if they are delivered again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
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

			n, err := store.CleanupDedup(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Removed %d dedup entries", n)))
			return err
		},
	}

	cmd.Flags().Duration("older-than", 30*24*time.Hour, "remove entries older than this")

	return cmd
}
