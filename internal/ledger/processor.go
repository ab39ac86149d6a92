// Package ledger runs notifications through gating, parsing, duplicate
// suppression and the audit trail, deciding which may become transactions.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/common"
	"github.com/Veraticus/autoledger/internal/fingerprint"
	"github.com/Veraticus/autoledger/internal/model"
)

// Classifier turns a raw event into a parse result. *parser.Registry satisfies it.
type Classifier interface {
	Parse(event model.RawNotificationEvent) model.ParseResult
}

// RecordStore appends debug records.
type RecordStore interface {
	SaveDebugRecord(ctx context.Context, record *audit.Record) error
}

// DedupStore remembers accepted notifications.
type DedupStore interface {
	HasFingerprint(ctx context.Context, fingerprint string) (bool, error)
	FindRecentContent(ctx context.Context, packageName, contentHash string, from, to int64) (*model.DedupEntry, error)
	CountRecent(ctx context.Context, packageName string, from, to int64) (int, error)
	RememberFingerprint(ctx context.Context, entry model.DedupEntry) error
}

// Store is everything the processor persists to. *storage.SQLiteStorage satisfies it.
type Store interface {
	RecordStore
	DedupStore
}

// Options tune the processor.
type Options struct {
	Retry common.RetryOptions
	// DedupWindow is applied on both sides of an event's post time.
	DedupWindow time.Duration
	// MaxEventsPerWindow caps accepted events per package inside one window.
	MaxEventsPerWindow int
	DedupEnabled       bool
	// MaskAtRest masks records before they are saved.
	MaskAtRest bool
	// Apps holds per-package overrides keyed by package name.
	Apps map[string]AppRule
}

// DefaultOptions returns the shipped processor options.
func DefaultOptions() Options {
	return Options{
		DedupEnabled:       true,
		DedupWindow:        20 * time.Second,
		MaxEventsPerWindow: 10,
		Retry:              common.DefaultRetryOptions(),
	}
}

// Outcome is what happened to one event.
type Outcome struct {
	Result model.ParseResult
	Record *audit.Record
	Status audit.ProcessingStatus
	Reason string
}

// Notification returns the parsed notification for successful outcomes.
func (o Outcome) Notification() (model.PaymentNotification, bool) {
	if s, ok := o.Result.(model.Success); ok {
		return s.Notification, true
	}
	return model.PaymentNotification{}, false
}

// AutoCreate reports whether a transaction may be created without confirmation.
func (o Outcome) AutoCreate() bool {
	return o.Status == audit.StatusSuccessAuto
}

// NeedsConfirmation reports whether a parsed notification awaits the user.
func (o Outcome) NeedsConfirmation() bool {
	return o.Status == audit.StatusSuccessSemi
}

// Processor is the single entry point for incoming notifications. Every
// processed event produces exactly one debug record.
type Processor struct {
	classifier Classifier
	builder    *audit.Builder
	store      Store
	now        func() time.Time
	opts       Options
}

// NewProcessor wires a processor.
func NewProcessor(classifier Classifier, builder *audit.Builder, store Store, opts Options) *Processor {
	return &Processor{
		classifier: classifier,
		builder:    builder,
		store:      store,
		opts:       opts,
		now:        time.Now,
	}
}

// Process handles one event. The returned error is non-nil only when the
// context is done or the record or its dedup entry could not be stored;
// parse failures are reported through the outcome.
func (p *Processor) Process(ctx context.Context, event model.RawNotificationEvent) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	start := p.now()

	if reason := gate(event, p.opts.Apps); reason != "" {
		result := model.Skipped{Reason: reason}
		rec := p.builder.Build(event, result, p.now().Sub(start))
		return p.finish(ctx, event, Outcome{Result: result, Reason: reason}, rec)
	}

	result := p.classifier.Parse(event)

	s, isSuccess := result.(model.Success)
	if isSuccess && p.opts.DedupEnabled {
		reason, err := p.duplicateReason(ctx, event, s.Notification)
		if err != nil {
			rec := p.builder.Unknown(event, fmt.Errorf("dedup check failed: %w", err), p.now().Sub(start))
			outcome, saveErr := p.finish(ctx, event, Outcome{Result: result, Reason: err.Error()}, rec)
			if saveErr != nil {
				return outcome, saveErr
			}
			return outcome, fmt.Errorf("dedup check failed: %w", err)
		}
		if reason != "" {
			rec := p.builder.Duplicate(event, s.Notification, reason, p.now().Sub(start))
			return p.finish(ctx, event, Outcome{Result: result, Reason: reason}, rec)
		}
	}

	rec := p.builder.Build(event, result, p.now().Sub(start))
	outcome, err := p.finish(ctx, event, Outcome{Result: result, Reason: rec.ErrorMessage}, rec)
	if err != nil || !isSuccess || !p.opts.DedupEnabled {
		return outcome, err
	}

	// Remember only after the record is stored; an unsaved event is not seen.
	if err := p.remember(ctx, event, s.Notification); err != nil {
		common.LogError(err, "Failed to remember notification", common.Fields{
			"id":      rec.ID,
			"package": event.PackageName,
		})
		return outcome, fmt.Errorf("failed to remember notification: %w", err)
	}
	return outcome, nil
}

func (p *Processor) duplicateReason(ctx context.Context, event model.RawNotificationEvent, n model.PaymentNotification) (string, error) {
	seen, err := p.store.HasFingerprint(ctx, n.Fingerprint)
	if err != nil {
		return "", err
	}
	if seen {
		return "fingerprint already recorded", nil
	}

	window := p.opts.DedupWindow.Milliseconds()
	from, to := event.PostTime-window, event.PostTime+window
	hash := fingerprint.ContentHash(event.TitleOrEmpty(), event.TextOrEmpty())

	hit, err := p.store.FindRecentContent(ctx, event.PackageName, hash, from, to)
	if err != nil {
		return "", err
	}
	if hit != nil {
		delta := event.PostTime - hit.PostTime
		if delta < 0 {
			delta = -delta
		}
		return fmt.Sprintf("same content within window (delta=%dms, window=%s)", delta, p.opts.DedupWindow), nil
	}

	if p.opts.MaxEventsPerWindow > 0 {
		count, err := p.store.CountRecent(ctx, event.PackageName, from, to)
		if err != nil {
			return "", err
		}
		if count >= p.opts.MaxEventsPerWindow {
			return fmt.Sprintf("too many events in window (count=%d, window=%s)", count, p.opts.DedupWindow), nil
		}
	}
	return "", nil
}

func (p *Processor) remember(ctx context.Context, event model.RawNotificationEvent, n model.PaymentNotification) error {
	entry := model.DedupEntry{
		Fingerprint: n.Fingerprint,
		PackageName: event.PackageName,
		ContentHash: fingerprint.ContentHash(event.TitleOrEmpty(), event.TextOrEmpty()),
		PostTime:    event.PostTime,
		CreatedAt:   p.now(),
	}
	return common.WithRetry(ctx, func() error {
		return p.store.RememberFingerprint(ctx, entry)
	}, p.opts.Retry)
}

func (p *Processor) finish(ctx context.Context, event model.RawNotificationEvent, outcome Outcome, rec *audit.Record) (Outcome, error) {
	if p.opts.MaskAtRest {
		rec = rec.Masked()
	}
	outcome.Record = rec
	outcome.Status = rec.Status

	err := common.WithRetry(ctx, func() error {
		return p.store.SaveDebugRecord(ctx, rec)
	}, p.opts.Retry)
	if err != nil {
		common.LogError(err, "Failed to save debug record", common.Fields{
			"id":      rec.ID,
			"package": event.PackageName,
			"status":  string(rec.Status),
		})
		return outcome, fmt.Errorf("failed to save debug record: %w", err)
	}

	common.LogDebug("Processed notification", common.Fields{
		"package":    event.PackageName,
		"status":     string(rec.Status),
		"confidence": rec.ParseConfidence,
		"reason":     outcome.Reason,
		"elapsed":    rec.ProcessingTime,
	})
	return outcome, nil
}

// Summary tallies a batch run.
type Summary struct {
	ByStatus  map[audit.ProcessingStatus]int
	Processed int
	Errors    int
}

// ProcessBatch processes events in order. progress, if set, is called after
// each event. Storage errors are counted and the batch continues; a done
// context stops it.
func (p *Processor) ProcessBatch(ctx context.Context, events []model.RawNotificationEvent, progress func(Outcome)) (Summary, error) {
	summary := Summary{ByStatus: make(map[audit.ProcessingStatus]int)}
	if len(events) == 0 {
		return summary, common.ErrNoEvents
	}

	var firstErr error
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome, err := p.Process(ctx, event)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Errors++
			if firstErr == nil {
				firstErr = err
			}
		}
		if outcome.Record != nil {
			summary.Processed++
			summary.ByStatus[outcome.Status]++
		}
		if progress != nil {
			progress(outcome)
		}
	}

	common.LogInfo("Batch processed", common.Fields{
		"events":    len(events),
		"processed": summary.Processed,
		"errors":    summary.Errors,
	})

	if firstErr != nil {
		return summary, fmt.Errorf("%d of %d events failed: %w", summary.Errors, len(events), firstErr)
	}
	return summary, nil
}
