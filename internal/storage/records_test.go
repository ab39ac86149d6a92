package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/common"
	"github.com/Veraticus/autoledger/internal/model"
)

var recordBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(id string, status audit.ProcessingStatus, createdAt time.Time) *audit.Record {
	cents := int64(2850)
	return &audit.Record{
		ID:                id,
		CreatedAt:         createdAt,
		PostedTime:        createdAt.UnixMilli(),
		SourceApp:         "com.eg.android.AlipayGphone",
		SourceType:        model.SourceAlipay,
		Status:            status,
		NotificationTitle: "支付宝",
		NotificationText:  "向【星巴克咖啡】付款28.50元",
		ParsedAmountCents: &cents,
		ParsedMerchant:    "星巴克咖啡",
		ParsedDirection:   model.DirectionExpense,
		ParseConfidence:   0.9,
		Fingerprint:       "fp-" + id,
		ParserName:        "alipay",
		ParserVersion:     1,
		ProcessingTime:    1500 * time.Microsecond,
	}
}

func TestSQLiteStorage_SaveAndGetDebugRecord(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rec := testRecord("rec-1", audit.StatusSuccessAuto, recordBase)
	require.NoError(t, store.SaveDebugRecord(ctx, rec))

	got, err := store.GetDebugRecord(ctx, "rec-1")
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = rec.CreatedAt
	assert.Equal(t, rec, got)

	t.Run("duplicate id", func(t *testing.T) {
		err := store.SaveDebugRecord(ctx, rec)
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.GetDebugRecord(ctx, "nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("record without amount", func(t *testing.T) {
		failed := testRecord("rec-2", audit.StatusFailedParse, recordBase)
		failed.ParsedAmountCents = nil
		failed.ErrorMessage = "no parser registered"
		require.NoError(t, store.SaveDebugRecord(ctx, failed))

		got, err := store.GetDebugRecord(ctx, "rec-2")
		require.NoError(t, err)
		_, ok := got.Amount()
		assert.False(t, ok)
		assert.Equal(t, "no parser registered", got.ErrorMessage)
	})
}

func TestSQLiteStorage_SaveDebugRecord_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		mutate  func(*audit.Record)
		wantErr error
		name    string
	}{
		{name: "missing id", mutate: func(r *audit.Record) { r.ID = "" }, wantErr: ErrInvalidRecord},
		{name: "missing time", mutate: func(r *audit.Record) { r.CreatedAt = time.Time{} }, wantErr: ErrInvalidRecord},
		{name: "missing app", mutate: func(r *audit.Record) { r.SourceApp = " " }, wantErr: ErrInvalidRecord},
		{name: "bad status", mutate: func(r *audit.Record) { r.Status = "DONE" }, wantErr: ErrInvalidStatus},
		{name: "bad confidence", mutate: func(r *audit.Record) { r.ParseConfidence = 1.2 }, wantErr: ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord("invalid", audit.StatusSuccessAuto, recordBase)
			tt.mutate(rec)
			assert.ErrorIs(t, store.SaveDebugRecord(ctx, rec), tt.wantErr)
		})
	}

	assert.ErrorIs(t, store.SaveDebugRecord(ctx, nil), ErrNilParameter)
}

func TestSQLiteStorage_ListDebugRecords(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	statuses := []audit.ProcessingStatus{
		audit.StatusSuccessAuto,
		audit.StatusFailedParse,
		audit.StatusSuccessAuto,
		audit.StatusSkippedDuplicate,
	}
	for i, status := range statuses {
		rec := testRecord(fmt.Sprintf("rec-%d", i), status, recordBase.Add(time.Duration(i)*time.Hour))
		if i == 3 {
			rec.SourceApp = "com.tencent.mm"
		}
		require.NoError(t, store.SaveDebugRecord(ctx, rec))
	}

	tests := []struct {
		filter  RecordFilter
		name    string
		wantIDs []string
	}{
		{name: "all newest first", wantIDs: []string{"rec-3", "rec-2", "rec-1", "rec-0"}},
		{name: "by status", filter: RecordFilter{Status: audit.StatusSuccessAuto}, wantIDs: []string{"rec-2", "rec-0"}},
		{name: "by app", filter: RecordFilter{SourceApp: "com.tencent.mm"}, wantIDs: []string{"rec-3"}},
		{name: "since", filter: RecordFilter{Since: recordBase.Add(2 * time.Hour)}, wantIDs: []string{"rec-3", "rec-2"}},
		{name: "until", filter: RecordFilter{Until: recordBase.Add(time.Hour)}, wantIDs: []string{"rec-0"}},
		{name: "limit", filter: RecordFilter{Limit: 1}, wantIDs: []string{"rec-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.ListDebugRecords(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(records))
			for _, rec := range records {
				ids = append(ids, rec.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	t.Run("invalid range", func(t *testing.T) {
		_, err := store.ListDebugRecords(ctx, RecordFilter{Since: recordBase, Until: recordBase.Add(-time.Hour)})
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := store.ListDebugRecords(ctx, RecordFilter{Status: "NOPE"})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func TestSQLiteStorage_CountByStatus(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i, status := range []audit.ProcessingStatus{
		audit.StatusSuccessAuto,
		audit.StatusSuccessAuto,
		audit.StatusSkippedLowConfidence,
	} {
		rec := testRecord(fmt.Sprintf("rec-%d", i), status, recordBase.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.SaveDebugRecord(ctx, rec))
	}

	counts, err := store.CountByStatus(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, map[audit.ProcessingStatus]int{
		audit.StatusSuccessAuto:          2,
		audit.StatusSkippedLowConfidence: 1,
	}, counts)

	counts, err = store.CountByStatus(ctx, recordBase.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, counts[audit.StatusSuccessAuto])
	assert.Equal(t, 1, counts[audit.StatusSkippedLowConfidence])
}

func TestSQLiteStorage_MaskRecordsBefore(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	old := testRecord("old", audit.StatusSuccessAuto, recordBase)
	fresh := testRecord("fresh", audit.StatusSuccessAuto, recordBase.Add(48*time.Hour))
	require.NoError(t, store.SaveDebugRecord(ctx, old))
	require.NoError(t, store.SaveDebugRecord(ctx, fresh))

	n, err := store.MaskRecordsBefore(ctx, recordBase.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetDebugRecord(ctx, "old")
	require.NoError(t, err)
	assert.True(t, got.SensitiveDataMasked)
	assert.Equal(t, audit.MaskText(old.NotificationText), got.NotificationText)
	assert.Equal(t, audit.MaskMerchant(old.ParsedMerchant), got.ParsedMerchant)
	cents, ok := got.Amount()
	require.True(t, ok)
	assert.Equal(t, int64(2850), cents)

	got, err = store.GetDebugRecord(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, got.SensitiveDataMasked)
	assert.Equal(t, fresh.NotificationText, got.NotificationText)

	// Already masked records are left alone.
	n, err = store.MaskRecordsBefore(ctx, recordBase.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
