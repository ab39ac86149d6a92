package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/common"
	"github.com/Veraticus/autoledger/internal/model"
)

// RecordFilter narrows ListDebugRecords. Zero values mean "no constraint".
type RecordFilter struct {
	Since     time.Time
	Until     time.Time
	Status    audit.ProcessingStatus
	SourceApp string
	Limit     int
}

const debugRecordColumns = `
	id, created_at, posted_time, source_app, source_type, status,
	notification_title, notification_text, raw_text,
	parsed_amount_cents, parsed_merchant, parsed_direction, parse_confidence,
	fingerprint, parser_name, parser_version, error_message,
	processing_time_us, sensitive_data_masked`

// SaveDebugRecord appends a record to the audit trail. Records are never
// overwritten; saving an existing ID returns common.ErrDuplicateEntry.
func (s *SQLiteStorage) SaveDebugRecord(ctx context.Context, rec *audit.Record) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}

	var amount sql.NullInt64
	if cents, ok := rec.Amount(); ok {
		amount = sql.NullInt64{Int64: cents, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debug_records (`+debugRecordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.CreatedAt.UTC(),
		rec.PostedTime,
		rec.SourceApp,
		string(rec.SourceType),
		string(rec.Status),
		rec.NotificationTitle,
		rec.NotificationText,
		rec.RawText,
		amount,
		rec.ParsedMerchant,
		string(rec.ParsedDirection),
		rec.ParseConfidence,
		rec.Fingerprint,
		rec.ParserName,
		rec.ParserVersion,
		rec.ErrorMessage,
		rec.ProcessingTime.Microseconds(),
		rec.SensitiveDataMasked,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: debug record %s", common.ErrDuplicateEntry, rec.ID)
		}
		return fmt.Errorf("failed to save debug record: %w", err)
	}
	return nil
}

// GetDebugRecord loads one record by ID.
func (s *SQLiteStorage) GetDebugRecord(ctx context.Context, id string) (*audit.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+debugRecordColumns+` FROM debug_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: debug record %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debug record: %w", err)
	}
	return rec, nil
}

// ListDebugRecords returns records newest first.
func (s *SQLiteStorage) ListDebugRecords(ctx context.Context, filter RecordFilter) ([]*audit.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRange(filter.Since, filter.Until); err != nil {
		return nil, err
	}
	if filter.Status != "" {
		if err := validateStatus(filter.Status); err != nil {
			return nil, err
		}
	}

	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.SourceApp != "" {
		where = append(where, "source_app = ?")
		args = append(args, filter.SourceApp)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, filter.Until.UTC())
	}

	query := `SELECT ` + debugRecordColumns + ` FROM debug_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list debug records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debug record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByStatus counts records per status created at or after since.
// A zero since counts everything.
func (s *SQLiteStorage) CountByStatus(ctx context.Context, since time.Time) (map[audit.ProcessingStatus]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT status, COUNT(*) FROM debug_records`
	var args []any
	if !since.IsZero() {
		query += ` WHERE created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count debug records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[audit.ProcessingStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[audit.ProcessingStatus(status)] = count
	}
	return counts, rows.Err()
}

// MaskRecordsBefore masks every unmasked record created before cutoff and
// returns how many were rewritten. Masking is the only update records ever see.
func (s *SQLiteStorage) MaskRecordsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	pending, err := s.unmaskedBeforeTx(ctx, tx, cutoff)
	if err != nil {
		return 0, err
	}

	for _, rec := range pending {
		masked := rec.Masked()
		_, err := tx.ExecContext(ctx, `
			UPDATE debug_records
			SET notification_title = ?, notification_text = ?, raw_text = ?,
			    parsed_merchant = ?, sensitive_data_masked = 1
			WHERE id = ? AND sensitive_data_masked = 0
		`, masked.NotificationTitle, masked.NotificationText, masked.RawText, masked.ParsedMerchant, masked.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to mask debug record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit masking: %w", err)
	}
	return len(pending), nil
}

func (s *SQLiteStorage) unmaskedBeforeTx(ctx context.Context, q queryable, cutoff time.Time) ([]*audit.Record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+debugRecordColumns+`
		FROM debug_records
		WHERE sensitive_data_masked = 0 AND created_at < ?
	`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query unmasked records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debug record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*audit.Record, error) {
	var (
		rec          audit.Record
		sourceType   string
		status       string
		direction    string
		amount       sql.NullInt64
		processingUS int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.CreatedAt,
		&rec.PostedTime,
		&rec.SourceApp,
		&sourceType,
		&status,
		&rec.NotificationTitle,
		&rec.NotificationText,
		&rec.RawText,
		&amount,
		&rec.ParsedMerchant,
		&direction,
		&rec.ParseConfidence,
		&rec.Fingerprint,
		&rec.ParserName,
		&rec.ParserVersion,
		&rec.ErrorMessage,
		&processingUS,
		&rec.SensitiveDataMasked,
	)
	if err != nil {
		return nil, err
	}

	rec.SourceType = model.SourceType(sourceType)
	rec.Status = audit.ProcessingStatus(status)
	rec.ParsedDirection = model.Direction(direction)
	rec.ProcessingTime = time.Duration(processingUS) * time.Microsecond
	if amount.Valid {
		cents := amount.Int64
		rec.ParsedAmountCents = &cents
	}
	return &rec, nil
}
