package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/cli"
	"github.com/Veraticus/autoledger/internal/ledger"
	"github.com/Veraticus/autoledger/internal/model"
	"github.com/Veraticus/autoledger/internal/parser"
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a single notification",
		Long: `Run one notification through the pipeline and show the outcome.

The notification is given either with --package/--title/--text or as a
JSON event with --event. By default the outcome is recorded like any other
notification; --dry-run only parses and stores nothing.`,
		Example: `  autoledger parse --package com.eg.android.AlipayGphone --title 支付宝 --text "向【星巴克】付款28.50元"
  autoledger parse --event '{"package_name":"com.tencent.mm","text":"已支付¥25.00","post_time":1700000000000}'`,
		RunE: runParse,
	}

	cmd.Flags().String("package", "", "source app package name")
	cmd.Flags().String("title", "", "notification title")
	cmd.Flags().String("text", "", "notification text")
	cmd.Flags().String("time", "", "post time (epoch millis, RFC 3339 or local date time; default now)")
	cmd.Flags().String("key", "", "notification key")
	cmd.Flags().String("event", "", "JSON event instead of the individual flags")
	cmd.Flags().Bool("dry-run", false, "parse only, do not record or deduplicate")
	cmd.Flags().Bool("json", false, "print the outcome as JSON")

	return cmd
}

func eventFromFlags(cmd *cobra.Command, now time.Time) (model.RawNotificationEvent, error) {
	if raw, _ := cmd.Flags().GetString("event"); raw != "" {
		return cli.DecodeEvent([]byte(raw))
	}

	pkg, _ := cmd.Flags().GetString("package")
	if pkg == "" {
		return model.RawNotificationEvent{}, fmt.Errorf("--package or --event is required")
	}
	timeFlag, _ := cmd.Flags().GetString("time")
	postTime, err := parseTime(timeFlag, now)
	if err != nil {
		return model.RawNotificationEvent{}, err
	}

	event := model.RawNotificationEvent{PackageName: pkg, PostTime: postTime}
	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		event.Title = &title
	}
	if cmd.Flags().Changed("text") {
		text, _ := cmd.Flags().GetString("text")
		event.Text = &text
	}
	if key, _ := cmd.Flags().GetString("key"); key != "" {
		event.NotificationKey = &key
	}
	return event, nil
}

func runParse(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	event, err := eventFromFlags(cmd, time.Now())
	if err != nil {
		return err
	}

	var outcome ledger.Outcome
	if dryRun {
		registry := parser.NewDefaultRegistry(cfg.Thresholds)
		builder := audit.NewBuilder(cfg.Audit.Policy, registry)
		start := time.Now()
		result := registry.Parse(event)
		rec := builder.Build(event, result, time.Since(start))
		outcome = ledger.Outcome{Result: result, Record: rec, Status: rec.Status, Reason: rec.ErrorMessage}
	} else {
		p, err := newPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		outcome, err = p.processor.Process(ctx, event)
		if err != nil {
			return fmt.Errorf("failed to process notification: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomeJSON(outcome))
	}
	_, err = fmt.Fprintln(out, cli.RenderOutcome(outcome))
	return err
}

// outcomeView is the JSON shape of an outcome.
type outcomeView struct {
	Notification *model.PaymentNotification `json:"notification,omitempty"`
	Status       audit.ProcessingStatus     `json:"status"`
	Result       string                     `json:"result,omitempty"`
	Reason       string                     `json:"reason,omitempty"`
	RecordID     string                     `json:"record_id,omitempty"`
	AutoCreate   bool                       `json:"auto_create"`
}

func outcomeJSON(o ledger.Outcome) outcomeView {
	v := outcomeView{
		Status:     o.Status,
		Reason:     o.Reason,
		AutoCreate: o.AutoCreate(),
	}
	if o.Result != nil {
		v.Result = o.Result.Kind()
	}
	if o.Record != nil {
		v.RecordID = o.Record.ID
	}
	if n, ok := o.Notification(); ok {
		v.Notification = &n
	}
	return v
}
