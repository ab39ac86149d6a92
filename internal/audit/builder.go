package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/autoledger/internal/model"
	"github.com/Veraticus/autoledger/internal/parser"
)

// Policy decides when a successful parse may create a transaction unattended.
type Policy struct {
	// AutoCreateConfidence is the minimum confidence for SUCCESS_AUTO.
	AutoCreateConfidence float64
	// MinAutoAmountCents keeps tiny amounts out of automatic creation.
	MinAutoAmountCents int64
	// AutoCreateEnabled turns every success into SUCCESS_SEMI when false.
	AutoCreateEnabled bool
}

// DefaultPolicy returns the shipped auto-create policy.
func DefaultPolicy() Policy {
	return Policy{
		AutoCreateEnabled:    true,
		AutoCreateConfidence: 0.85,
	}
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.AutoCreateConfidence < 0 || p.AutoCreateConfidence > 1 {
		return fmt.Errorf("auto-create confidence %.2f outside [0,1]", p.AutoCreateConfidence)
	}
	if p.MinAutoAmountCents < 0 {
		return fmt.Errorf("minimum auto amount %d is negative", p.MinAutoAmountCents)
	}
	return nil
}

// ParserLookup finds the parser that handles a package. *parser.Registry
// satisfies it.
type ParserLookup interface {
	ParserFor(packageName string) (parser.Parser, bool)
}

type sourceTyped interface {
	SourceType() model.SourceType
}

// Builder turns pipeline outcomes into debug records.
type Builder struct {
	lookup ParserLookup
	now    func() time.Time
	newID  func() string
	policy Policy
}

// NewBuilder creates a record builder. lookup may be nil, in which case
// records for unparsed events carry no parser metadata.
func NewBuilder(policy Policy, lookup ParserLookup) *Builder {
	return &Builder{
		policy: policy,
		lookup: lookup,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Policy returns the policy the builder applies.
func (b *Builder) Policy() Policy {
	return b.policy
}

// Status resolves the processing status for a registry result.
func (b *Builder) Status(result model.ParseResult) ProcessingStatus {
	switch r := result.(type) {
	case model.Success:
		if b.canAutoCreate(r.Notification) {
			return StatusSuccessAuto
		}
		return StatusSuccessSemi
	case model.Failed:
		if errors.Is(r.Err, parser.ErrLowConfidence) {
			return StatusSkippedLowConfidence
		}
		return StatusFailedParse
	case model.Skipped, model.Unsupported:
		return StatusFailedParse
	case model.Error:
		return StatusFailedProcess
	default:
		return StatusFailedUnknown
	}
}

func (b *Builder) canAutoCreate(n model.PaymentNotification) bool {
	return b.policy.AutoCreateEnabled &&
		n.Confidence >= b.policy.AutoCreateConfidence &&
		n.AmountCents >= b.policy.MinAutoAmountCents
}

// Build records the outcome of parsing one event.
func (b *Builder) Build(event model.RawNotificationEvent, result model.ParseResult, elapsed time.Duration) *Record {
	rec := b.base(event, elapsed)
	rec.Status = b.Status(result)

	switch r := result.(type) {
	case model.Success:
		fillParsed(rec, r.Notification)
	case model.Failed:
		rec.ErrorMessage = r.Reason
	case model.Skipped:
		rec.ErrorMessage = r.Reason
	case model.Unsupported:
		rec.ErrorMessage = r.Reason
	case model.Error:
		rec.ErrorMessage = r.String()
	}
	return rec
}

// Duplicate records a parsed notification that was suppressed as a re-delivery.
func (b *Builder) Duplicate(event model.RawNotificationEvent, n model.PaymentNotification, reason string, elapsed time.Duration) *Record {
	rec := b.base(event, elapsed)
	rec.Status = StatusSkippedDuplicate
	fillParsed(rec, n)
	rec.ErrorMessage = reason
	return rec
}

// Unknown records a failure outside the parser, such as a storage error.
func (b *Builder) Unknown(event model.RawNotificationEvent, err error, elapsed time.Duration) *Record {
	rec := b.base(event, elapsed)
	rec.Status = StatusFailedUnknown
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	return rec
}

func (b *Builder) base(event model.RawNotificationEvent, elapsed time.Duration) *Record {
	rec := &Record{
		ID:                b.newID(),
		CreatedAt:         b.now(),
		PostedTime:        event.PostTime,
		SourceApp:         event.PackageName,
		SourceType:        model.SourceUnknown,
		NotificationTitle: event.TitleOrEmpty(),
		NotificationText:  event.TextOrEmpty(),
		ProcessingTime:    elapsed,
	}
	if b.lookup == nil {
		return rec
	}
	if p, ok := b.lookup.ParserFor(event.PackageName); ok {
		rec.ParserName = p.Name()
		rec.ParserVersion = p.Version()
		if st, ok := p.(sourceTyped); ok {
			rec.SourceType = st.SourceType()
		}
	}
	return rec
}

func fillParsed(rec *Record, n model.PaymentNotification) {
	amount := n.AmountCents
	rec.ParsedAmountCents = &amount
	rec.ParsedMerchant = n.Merchant()
	rec.ParsedDirection = n.Direction
	rec.ParseConfidence = n.Confidence
	rec.Fingerprint = n.Fingerprint
	rec.RawText = n.RawText
	rec.ParserVersion = n.ParserVersion
	if n.SourceType != "" {
		rec.SourceType = n.SourceType
	}
}
