// Package parser turns raw payment-app notifications into structured payment events.
//
// Every provider implements Parser. Callers go through Registry.Parse, which is
// the only place parser errors and panics become data.
package parser

import (
	"errors"

	"github.com/Veraticus/autoledger/internal/model"
)

// Parser extracts a payment notification from one provider's notifications.
type Parser interface {
	// SupportedPackages lists the app ids this parser handles.
	SupportedPackages() []string
	// Name identifies the parser in statistics and debug records.
	Name() string
	// Version is bumped whenever extraction rules change.
	Version() int
	// CanParse is a cheap pre-filter. Parse may still produce nothing.
	CanParse(event model.RawNotificationEvent) bool
	// Parse runs full extraction. A nil notification with a nil error, or an
	// error wrapping ErrRejected, means the content was not a usable payment.
	// Any other error is a parser defect.
	Parse(event model.RawNotificationEvent) (*model.PaymentNotification, error)
}

// Rejection reasons. All of them wrap ErrRejected.
var (
	ErrRejected         = errors.New("notification rejected")
	ErrNotTransactional = wrapRejected("non-transactional content")
	ErrNoAmount         = wrapRejected("no positive amount")
	ErrLowConfidence    = wrapRejected("confidence below threshold")
)

// ErrInvalidEncoding is returned for titles or texts that are not valid UTF-8.
var ErrInvalidEncoding = errors.New("notification text is not valid UTF-8")

type rejectedError struct {
	reason string
}

func wrapRejected(reason string) error {
	return &rejectedError{reason: reason}
}

func (e *rejectedError) Error() string {
	return e.reason
}

func (e *rejectedError) Unwrap() error {
	return ErrRejected
}

// IsRejection reports whether err describes non-payment content rather than a defect.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRejected)
}

// Thresholds gate what a parser is willing to emit. Values are empirical and
// meant to be tuned against real notifications.
type Thresholds struct {
	// MinConfidence is the floor below which the full path emits nothing.
	MinConfidence float64
	// RetainRawBelow keeps the raw text on results scored under this value.
	RetainRawBelow float64
	// FastPathConfidence is assigned when direction and amount match up front.
	FastPathConfidence float64
}

// DefaultThresholds returns the shipped thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence:      0.6,
		RetainRawBelow:     0.8,
		FastPathConfidence: 0.9,
	}
}

// Validate checks that the thresholds are usable together.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.MinConfidence, t.RetainRawBelow, t.FastPathConfidence} {
		if v < 0 || v > 1 {
			return errors.New("thresholds must be within [0,1]")
		}
	}
	if t.FastPathConfidence < t.MinConfidence {
		return errors.New("fast path confidence must not be below the minimum confidence")
	}
	return nil
}
