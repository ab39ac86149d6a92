package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/autoledger/internal/model"
)

// HasFingerprint reports whether a notification with this fingerprint was accepted before.
func (s *SQLiteStorage) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return false, err
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM dedup_entries WHERE fingerprint = ?)`, fingerprint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return exists == 1, nil
}

// FindRecentContent returns the closest entry from the same package with the
// same content hash whose post time lies in [from, to] (epoch millis), or nil.
func (s *SQLiteStorage) FindRecentContent(ctx context.Context, packageName, contentHash string, from, to int64) (*model.DedupEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(packageName, "packageName"); err != nil {
		return nil, err
	}
	if to < from {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidDateRange, from, to)
	}

	center := from + (to-from)/2
	var entry model.DedupEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, package_name, content_hash, post_time, created_at
		FROM dedup_entries
		WHERE package_name = ? AND content_hash = ? AND post_time BETWEEN ? AND ?
		ORDER BY ABS(post_time - ?)
		LIMIT 1
	`, packageName, contentHash, from, to, center).Scan(
		&entry.Fingerprint,
		&entry.PackageName,
		&entry.ContentHash,
		&entry.PostTime,
		&entry.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recent content: %w", err)
	}
	return &entry, nil
}

// CountRecent counts accepted entries of a package posted within [from, to].
func (s *SQLiteStorage) CountRecent(ctx context.Context, packageName string, from, to int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(packageName, "packageName"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM dedup_entries
		WHERE package_name = ? AND post_time BETWEEN ? AND ?
	`, packageName, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent entries: %w", err)
	}
	return count, nil
}

// RememberFingerprint stores an accepted notification. Remembering the same
// fingerprint twice is a no-op.
func (s *SQLiteStorage) RememberFingerprint(ctx context.Context, entry model.DedupEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEntry(&entry); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO dedup_entries (fingerprint, package_name, content_hash, post_time, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.Fingerprint, entry.PackageName, entry.ContentHash, entry.PostTime, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to remember fingerprint: %w", err)
	}
	return nil
}

// CleanupDedup drops entries created before cutoff and returns how many went.
func (s *SQLiteStorage) CleanupDedup(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM dedup_entries WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up dedup entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count removed entries: %w", err)
	}
	return n, nil
}
