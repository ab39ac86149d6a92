package main

import (
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/autoledger/internal/cli"
	"github.com/Veraticus/autoledger/internal/common"
	"github.com/Veraticus/autoledger/internal/ledger"
)

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Process a captured file of notifications",
		Long: `Replay newline-delimited JSON notification events through the pipeline.

Each line is one event:
  {"package_name":"com.tencent.mm","title":"微信支付","text":"已支付¥25.00","post_time":1700000000000}

Use "-" to read from stdin. Every event leaves a debug record; duplicates
within the dedup window are recorded as SKIPPED_DUPLICATE.`,
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}

	cmd.Flags().Int("skip", 0, "skip the first N events (resume an interrupted replay)")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	cmd.Flags().Bool("stats", false, "show per-parser statistics afterwards")

	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	skip, _ := cmd.Flags().GetInt("skip")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	showStats, _ := cmd.Flags().GetBool("stats")
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	events, err := cli.ReadAllEvents(cmd.Context(), in)
	if err != nil {
		return common.NewUserError("could not read events", err)
	}
	if skip < 0 || skip > len(events) {
		return fmt.Errorf("--skip %d is outside 0..%d", skip, len(events))
	}
	events = events[skip:]
	if len(events) == 0 {
		_, err := fmt.Fprintln(out, cli.FormatInfo("No events to replay"))
		return err
	}

	p, err := newPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	processed := skip
	handler := cli.NewInterruptHandler(out, "")
	ctx, stop := handler.HandleInterrupts(cmd.Context())
	defer stop()

	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = progressbar.NewOptions(len(events),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Replaying notifications...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	summary, err := p.processor.ProcessBatch(ctx, events, func(ledger.Outcome) {
		processed++
		if bar != nil {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	if ctx.Err() != nil {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Resume with: autoledger replay %s --skip %d", args[0], processed)))
	}

	fmt.Fprintln(out, cli.RenderSummary(summary))
	if showStats {
		fmt.Fprintln(out, cli.RenderParserStats(p.registry.Stats(), p.registry.UnsupportedCount()))
	}

	if err != nil {
		return fmt.Errorf("replay incomplete: %w", err)
	}
	return nil
}
