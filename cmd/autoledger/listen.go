package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/autoledger/internal/cli"
	"github.com/Veraticus/autoledger/internal/common"
	"github.com/Veraticus/autoledger/internal/ledger"
)

func listenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Process notifications from stdin as they arrive",
		Long: `Read newline-delimited JSON events from stdin and process each one as soon
as it arrives, printing one line per outcome. Intended to sit behind a
notification bridge: bridge | autoledger listen --json.

Malformed lines are logged and skipped. Stops at end of input or on Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: runListen,
	}

	cmd.Flags().Bool("json", false, "print outcomes as JSON lines")

	return cmd
}

func runListen(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := newPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "")
	ctx, stop := handler.HandleInterrupts(cmd.Context())
	defer stop()

	reader := cli.NewEventReader(cmd.InOrStdin())
	enc := json.NewEncoder(out)

	slog.Info("Listening for notifications", "database", cfg.DatabasePath)
	count := 0
	for {
		event, err := reader.Next(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, cli.ErrInputCancelled):
			slog.Info("Stopped listening", "processed", count)
			return nil
		case errors.Is(err, common.ErrInvalidEvent):
			slog.Warn("Skipping malformed event", "error", err)
			continue
		case err != nil:
			return fmt.Errorf("failed to read events: %w", err)
		}

		outcome, err := p.processor.Process(ctx, event)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			common.LogError(err, "Failed to process notification", common.Fields{
				"package": event.PackageName,
				"line":    reader.Line(),
			})
			if outcome.Record == nil {
				continue
			}
		}
		count++

		if asJSON {
			if err := enc.Encode(outcomeJSON(outcome)); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintln(out, outcomeLine(outcome)); err != nil {
			return err
		}
	}
}

// outcomeLine is the one-line form of an outcome.
func outcomeLine(o ledger.Outcome) string {
	parts := []string{cli.FormatStatus(o.Status)}
	if n, ok := o.Notification(); ok {
		parts = append(parts, cli.FormatCents(n.AmountCents), string(n.Direction))
		if m := n.Merchant(); m != "" {
			parts = append(parts, m)
		}
	}
	if o.Record != nil {
		parts = append(parts, o.Record.SourceApp)
	}
	if o.Reason != "" && !o.Status.IsSuccess() {
		parts = append(parts, cli.SubtleStyle.Render(o.Reason))
	}
	return strings.Join(parts, "  ")
}
