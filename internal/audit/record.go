// Package audit builds the debug records kept for every processed notification.
package audit

import (
	"fmt"
	"time"

	"github.com/Veraticus/autoledger/internal/model"
)

// ProcessingStatus is the final outcome recorded for one notification.
type ProcessingStatus string

// Processing statuses.
const (
	StatusSuccessAuto          ProcessingStatus = "SUCCESS_AUTO"
	StatusSuccessSemi          ProcessingStatus = "SUCCESS_SEMI"
	StatusSkippedDuplicate     ProcessingStatus = "SKIPPED_DUPLICATE"
	StatusSkippedLowConfidence ProcessingStatus = "SKIPPED_LOW_CONFIDENCE"
	StatusFailedParse          ProcessingStatus = "FAILED_PARSE"
	StatusFailedProcess        ProcessingStatus = "FAILED_PROCESS"
	StatusFailedUnknown        ProcessingStatus = "FAILED_UNKNOWN"
)

// AllStatuses lists every status in display order.
func AllStatuses() []ProcessingStatus {
	return []ProcessingStatus{
		StatusSuccessAuto,
		StatusSuccessSemi,
		StatusSkippedDuplicate,
		StatusSkippedLowConfidence,
		StatusFailedParse,
		StatusFailedProcess,
		StatusFailedUnknown,
	}
}

// ParseStatus converts a stored or user-supplied value to a status.
func ParseStatus(s string) (ProcessingStatus, error) {
	for _, status := range AllStatuses() {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown processing status %q", s)
}

// IsSuccess reports whether a notification was produced.
func (s ProcessingStatus) IsSuccess() bool {
	return s == StatusSuccessAuto || s == StatusSuccessSemi
}

// IsFailure reports whether processing ended in a failure.
func (s ProcessingStatus) IsFailure() bool {
	return s == StatusFailedParse || s == StatusFailedProcess || s == StatusFailedUnknown
}

// Record is one entry of the append-only audit trail. Records are never
// modified after creation; Masked returns a redacted copy instead.
type Record struct {
	CreatedAt           time.Time        `json:"created_at"`
	ParsedAmountCents   *int64           `json:"parsed_amount_cents,omitempty"`
	ID                  string           `json:"id"`
	SourceApp           string           `json:"source_app"`
	SourceType          model.SourceType `json:"source_type"`
	Status              ProcessingStatus `json:"status"`
	NotificationTitle   string           `json:"notification_title"`
	NotificationText    string           `json:"notification_text"`
	RawText             string           `json:"raw_text,omitempty"`
	ParsedMerchant      string           `json:"parsed_merchant,omitempty"`
	ParsedDirection     model.Direction  `json:"parsed_direction,omitempty"`
	Fingerprint         string           `json:"fingerprint,omitempty"`
	ParserName          string           `json:"parser_name,omitempty"`
	ErrorMessage        string           `json:"error_message,omitempty"`
	PostedTime          int64            `json:"posted_time"`
	ProcessingTime      time.Duration    `json:"processing_time"`
	ParserVersion       int              `json:"parser_version,omitempty"`
	ParseConfidence     float64          `json:"parse_confidence"`
	SensitiveDataMasked bool             `json:"sensitive_data_masked"`
}

// Masked returns a copy with notification text, raw text and merchant
// redacted. An already masked record is returned as is.
func (r *Record) Masked() *Record {
	if r == nil || r.SensitiveDataMasked {
		return r
	}

	out := *r
	if r.ParsedAmountCents != nil {
		amount := *r.ParsedAmountCents
		out.ParsedAmountCents = &amount
	}
	out.NotificationTitle = MaskText(r.NotificationTitle)
	out.NotificationText = MaskText(r.NotificationText)
	out.RawText = MaskText(r.RawText)
	out.ParsedMerchant = MaskMerchant(r.ParsedMerchant)
	out.SensitiveDataMasked = true
	return &out
}

// Amount returns the parsed amount and whether one was recorded.
func (r *Record) Amount() (int64, bool) {
	if r.ParsedAmountCents == nil {
		return 0, false
	}
	return *r.ParsedAmountCents, true
}

// PostedAt converts PostedTime to a time.Time.
func (r *Record) PostedAt() time.Time {
	return time.UnixMilli(r.PostedTime)
}
