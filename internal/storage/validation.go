// Package storage provides the SQLite persistence layer for debug records and dedup entries.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidStatus    = errors.New("invalid processing status")
	ErrInvalidRecord    = errors.New("invalid debug record")
	ErrInvalidEntry     = errors.New("invalid dedup entry")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateStatus(status audit.ProcessingStatus) error {
	if _, err := audit.ParseStatus(string(status)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	return nil
}

// validateRecord validates a debug record before it is appended.
func validateRecord(rec *audit.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecord)
	}
	if rec.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing creation time", ErrInvalidRecord)
	}
	if strings.TrimSpace(rec.SourceApp) == "" {
		return fmt.Errorf("%w: missing source app", ErrInvalidRecord)
	}
	if err := validateStatus(rec.Status); err != nil {
		return err
	}
	if rec.ParseConfidence < 0 || rec.ParseConfidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidRecord)
	}
	return nil
}

// validateEntry validates a dedup entry.
func validateEntry(entry *model.DedupEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if strings.TrimSpace(entry.Fingerprint) == "" {
		return fmt.Errorf("%w: missing fingerprint", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.PackageName) == "" {
		return fmt.Errorf("%w: missing package name", ErrInvalidEntry)
	}
	return nil
}

func validateRange(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, to, from)
	}
	return nil
}
