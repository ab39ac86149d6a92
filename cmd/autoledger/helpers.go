package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/common"
	"github.com/Veraticus/autoledger/internal/config"
	"github.com/Veraticus/autoledger/internal/ledger"
	"github.com/Veraticus/autoledger/internal/parser"
	"github.com/Veraticus/autoledger/internal/storage"
)

// pipeline bundles everything a processing command needs.
type pipeline struct {
	registry  *parser.Registry
	processor *ledger.Processor
	store     *storage.SQLiteStorage
}

func (p *pipeline) Close() {
	_ = p.store.Close()
}

// initStorage opens and migrates the configured database.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, common.NewUserError("failed to open database "+cfg.DatabasePath, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("Opened database", "path", store.Path())
	return store, nil
}

func processorOptions(cfg *config.Config) ledger.Options {
	opts := ledger.DefaultOptions()
	opts.DedupEnabled = cfg.Dedup.Enabled
	opts.DedupWindow = cfg.Dedup.Window
	opts.MaxEventsPerWindow = cfg.Dedup.MaxEventsPerWindow
	opts.MaskAtRest = cfg.Audit.MaskAtRest
	if len(cfg.Apps) > 0 {
		opts.Apps = make(map[string]ledger.AppRule, len(cfg.Apps))
		for _, app := range cfg.Apps {
			opts.Apps[app.Package] = ledger.AppRule{
				Disabled:  !app.IsEnabled(),
				Blacklist: app.Blacklist,
			}
		}
	}
	return opts
}

func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := parser.NewDefaultRegistry(cfg.Thresholds)
	builder := audit.NewBuilder(cfg.Audit.Policy, registry)
	return &pipeline{
		registry:  registry,
		processor: ledger.NewProcessor(registry, builder, store, processorOptions(cfg)),
		store:     store,
	}, nil
}

// parseTime accepts epoch milliseconds, RFC 3339, or "2006-01-02 15:04:05"
// in local time. An empty value means now.
func parseTime(value string, now time.Time) (int64, error) {
	if value == "" {
		return now.UnixMilli(), nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("post time must be positive: %d", ms)
		}
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UnixMilli(), nil
	}
	if t, err := time.ParseInLocation(time.DateTime, value, time.Local); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("unrecognized time %q (use epoch millis, RFC 3339 or %q)", value, time.DateTime)
}

// parseSince turns a lookback such as "24h" or "7d" into an absolute time.
// An empty value means no bound.
func parseSince(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if n := len(value); n > 1 && value[n-1] == 'd' {
		days, err := strconv.Atoi(value[:n-1])
		if err != nil || days < 0 {
			return time.Time{}, fmt.Errorf("invalid day count %q", value)
		}
		return now.AddDate(0, 0, -days), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d < 0 {
		return time.Time{}, fmt.Errorf("duration must not be negative: %s", value)
	}
	return now.Add(-d), nil
}

// openInput returns stdin for "-" and the named file otherwise.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path) //nolint:gosec // user-supplied input file
	if err != nil {
		return nil, common.NewUserError("could not open events file", err)
	}
	return f, nil
}
