package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/common"
	"github.com/Veraticus/autoledger/internal/model"
	"github.com/Veraticus/autoledger/internal/parser"
)

const basePostTime = int64(1700000000000)

// memoryStore is an in-memory Store with failure injection.
type memoryStore struct {
	saveErr   error
	dedupErr  error
	entries   map[string]model.DedupEntry
	records   []*audit.Record
	saveCalls int
	failSaves int
	mu        sync.Mutex
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]model.DedupEntry)}
}

func (m *memoryStore) SaveDebugRecord(_ context.Context, rec *audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.failSaves > 0 {
		m.failSaves--
		return common.ErrDatabaseBusy
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryStore) HasFingerprint(_ context.Context, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dedupErr != nil {
		return false, m.dedupErr
	}
	_, ok := m.entries[fp]
	return ok, nil
}

func (m *memoryStore) FindRecentContent(_ context.Context, pkg, hash string, from, to int64) (*model.DedupEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.PackageName == pkg && e.ContentHash == hash && e.PostTime >= from && e.PostTime <= to {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) CountRecent(_ context.Context, pkg string, from, to int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.PackageName == pkg && e.PostTime >= from && e.PostTime <= to {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) RememberFingerprint(_ context.Context, entry model.DedupEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.Fingerprint]; !ok {
		m.entries[entry.Fingerprint] = entry
	}
	return nil
}

func (m *memoryStore) saved() []*audit.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*audit.Record(nil), m.records...)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retry = common.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return opts
}

func newTestProcessor(store Store, opts Options) *Processor {
	registry := parser.NewDefaultRegistry(parser.DefaultThresholds())
	return NewProcessor(registry, audit.NewBuilder(audit.DefaultPolicy(), registry), store, opts)
}

func TestProcessor_Process_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		event      model.RawNotificationEvent
		wantStatus audit.ProcessingStatus
		wantReason string
		wantParsed bool
	}{
		{
			name:       "fast path payment auto-creates",
			event:      model.NewEvent(parser.AlipayPackage, "支付宝", "向【星巴克咖啡】付款28.50元", basePostTime),
			wantStatus: audit.StatusSuccessAuto,
			wantParsed: true,
		},
		{
			name:       "mid confidence needs confirmation",
			event:      model.NewEvent(parser.UnionPayPackage, "云闪付", "转出 ¥200.00", basePostTime),
			wantStatus: audit.StatusSuccessSemi,
			wantParsed: true,
		},
		{
			name:       "low confidence is skipped",
			event:      model.NewEvent(parser.AlipayPackage, "支付宝", "账户变动 ¥12.00", basePostTime),
			wantStatus: audit.StatusSkippedLowConfidence,
		},
		{
			name:       "unsupported app",
			event:      model.NewEvent("com.example.notes", "Notes", "Paid ¥5.00", basePostTime),
			wantStatus: audit.StatusFailedParse,
			wantReason: "no parser registered",
		},
		{
			name:       "e-commerce app is gated",
			event:      model.NewEvent("com.taobao.taobao", "淘宝", "付款成功 ¥99.00", basePostTime),
			wantStatus: audit.StatusFailedParse,
			wantReason: "e-commerce app notification",
		},
		{
			name:       "order notice is gated",
			event:      model.NewEvent(parser.AlipayPackage, "支付宝", "您的订单已发货", basePostTime),
			wantStatus: audit.StatusFailedParse,
			wantReason: "order notification without payment keywords",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			p := newTestProcessor(store, testOptions())

			outcome, err := p.Process(context.Background(), tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, outcome.Status)
			require.NotNil(t, outcome.Record)
			assert.Equal(t, tt.wantStatus, outcome.Record.Status)
			if tt.wantReason != "" {
				assert.Contains(t, outcome.Reason, tt.wantReason)
				assert.Contains(t, outcome.Record.ErrorMessage, tt.wantReason)
			}

			_, parsed := outcome.Notification()
			assert.Equal(t, tt.wantParsed, parsed)
			assert.Equal(t, tt.wantStatus == audit.StatusSuccessAuto, outcome.AutoCreate())
			assert.Equal(t, tt.wantStatus == audit.StatusSuccessSemi, outcome.NeedsConfirmation())

			saved := store.saved()
			require.Len(t, saved, 1)
			assert.Same(t, outcome.Record, saved[0])
			assert.Equal(t, tt.event.PackageName, saved[0].SourceApp)
		})
	}
}

func TestProcessor_Process_Dedup(t *testing.T) {
	t.Run("same event twice", func(t *testing.T) {
		store := newMemoryStore()
		p := newTestProcessor(store, testOptions())
		event := model.NewEvent(parser.AlipayPackage, "支付宝", "向【星巴克咖啡】付款28.50元", basePostTime)

		first, err := p.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, audit.StatusSuccessAuto, first.Status)

		second, err := p.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, audit.StatusSkippedDuplicate, second.Status)
		assert.Equal(t, "fingerprint already recorded", second.Reason)
		assert.Equal(t, first.Record.Fingerprint, second.Record.Fingerprint)
		assert.Len(t, store.saved(), 2)
	})

	t.Run("redelivery inside window", func(t *testing.T) {
		store := newMemoryStore()
		p := newTestProcessor(store, testOptions())
		text := "向【星巴克咖啡】付款28.50元"

		_, err := p.Process(context.Background(), model.NewEvent(parser.AlipayPackage, "支付宝", text, basePostTime))
		require.NoError(t, err)

		outcome, err := p.Process(context.Background(),
			model.NewEvent(parser.AlipayPackage, "支付宝", text, basePostTime+5000))
		require.NoError(t, err)
		assert.Equal(t, audit.StatusSkippedDuplicate, outcome.Status)
		assert.Contains(t, outcome.Reason, "same content within window (delta=5000ms")
	})

	t.Run("redelivery outside window", func(t *testing.T) {
		store := newMemoryStore()
		p := newTestProcessor(store, testOptions())
		text := "向【星巴克咖啡】付款28.50元"

		_, err := p.Process(context.Background(), model.NewEvent(parser.AlipayPackage, "支付宝", text, basePostTime))
		require.NoError(t, err)

		outcome, err := p.Process(context.Background(),
			model.NewEvent(parser.AlipayPackage, "支付宝", text, basePostTime+21000))
		require.NoError(t, err)
		assert.Equal(t, audit.StatusSuccessAuto, outcome.Status)
	})

	t.Run("frequency cap", func(t *testing.T) {
		store := newMemoryStore()
		opts := testOptions()
		opts.MaxEventsPerWindow = 2
		p := newTestProcessor(store, opts)

		texts := []string{"向【甲店】付款1.00元", "向【乙店】付款2.00元", "向【丙店】付款3.00元"}
		var last Outcome
		for i, text := range texts {
			var err error
			last, err = p.Process(context.Background(),
				model.NewEvent(parser.AlipayPackage, "支付宝", text, basePostTime+int64(i)*1000))
			require.NoError(t, err)
		}
		assert.Equal(t, audit.StatusSkippedDuplicate, last.Status)
		assert.Contains(t, last.Reason, "too many events in window (count=2")
	})

	t.Run("disabled", func(t *testing.T) {
		store := newMemoryStore()
		opts := testOptions()
		opts.DedupEnabled = false
		p := newTestProcessor(store, opts)
		event := model.NewEvent(parser.AlipayPackage, "支付宝", "向【星巴克咖啡】付款28.50元", basePostTime)

		for i := 0; i < 2; i++ {
			outcome, err := p.Process(context.Background(), event)
			require.NoError(t, err)
			assert.Equal(t, audit.StatusSuccessAuto, outcome.Status)
		}
		assert.Empty(t, store.entries)
	})

	t.Run("failed parses are not remembered", func(t *testing.T) {
		store := newMemoryStore()
		p := newTestProcessor(store, testOptions())

		_, err := p.Process(context.Background(),
			model.NewEvent(parser.AlipayPackage, "支付宝", "账户变动 ¥12.00", basePostTime))
		require.NoError(t, err)
		assert.Empty(t, store.entries)
	})
}

func TestProcessor_Process_StoreFailures(t *testing.T) {
	event := model.NewEvent(parser.AlipayPackage, "支付宝", "向【星巴克咖啡】付款28.50元", basePostTime)

	t.Run("dedup lookup error records unknown", func(t *testing.T) {
		store := newMemoryStore()
		lookupErr := errors.New("disk I/O error")
		store.dedupErr = lookupErr
		p := newTestProcessor(store, testOptions())

		outcome, err := p.Process(context.Background(), event)
		require.Error(t, err)
		assert.ErrorIs(t, err, lookupErr)
		assert.Equal(t, audit.StatusFailedUnknown, outcome.Status)
		require.Len(t, store.saved(), 1)
		assert.Contains(t, store.saved()[0].ErrorMessage, "disk I/O error")
	})

	t.Run("busy save is retried", func(t *testing.T) {
		store := newMemoryStore()
		store.failSaves = 2
		p := newTestProcessor(store, testOptions())

		outcome, err := p.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, audit.StatusSuccessAuto, outcome.Status)
		assert.Equal(t, 3, store.saveCalls)
		assert.Len(t, store.saved(), 1)
	})

	t.Run("permanent save error", func(t *testing.T) {
		store := newMemoryStore()
		store.saveErr = common.ErrDatabaseCorrupted
		p := newTestProcessor(store, testOptions())

		outcome, err := p.Process(context.Background(), event)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrDatabaseCorrupted)
		assert.Equal(t, 1, store.saveCalls)
		assert.NotNil(t, outcome.Record)
	})

	t.Run("failed save does not mark the event as seen", func(t *testing.T) {
		store := newMemoryStore()
		store.saveErr = errors.New("disk full")
		p := newTestProcessor(store, testOptions())

		_, err := p.Process(context.Background(), event)
		require.Error(t, err)
		assert.Empty(t, store.saved())
		assert.Empty(t, store.entries)

		store.saveErr = nil
		outcome, err := p.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, audit.StatusSuccessAuto, outcome.Status)
		assert.Len(t, store.saved(), 1)
		assert.Len(t, store.entries, 1)
	})

	t.Run("canceled context", func(t *testing.T) {
		store := newMemoryStore()
		p := newTestProcessor(store, testOptions())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := p.Process(ctx, event)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, store.saved())
	})
}

func TestProcessor_Process_AppRules(t *testing.T) {
	store := newMemoryStore()
	opts := testOptions()
	opts.Apps = map[string]AppRule{parser.WeChatPackage: {Disabled: true}}
	p := newTestProcessor(store, opts)

	outcome, err := p.Process(context.Background(),
		model.NewEvent(parser.WeChatPackage, "微信支付", "已支付¥25.00", basePostTime))
	require.NoError(t, err)
	assert.Equal(t, audit.StatusFailedParse, outcome.Status)
	assert.Equal(t, "automatic bookkeeping disabled for app", outcome.Reason)
	assert.IsType(t, model.Skipped{}, outcome.Result)
	assert.Len(t, store.saved(), 1)
	assert.Empty(t, store.entries)
}

func TestProcessor_Process_MaskAtRest(t *testing.T) {
	store := newMemoryStore()
	opts := testOptions()
	opts.MaskAtRest = true
	p := newTestProcessor(store, opts)

	outcome, err := p.Process(context.Background(),
		model.NewEvent(parser.AlipayPackage, "支付宝", "向【星巴克咖啡】付款28.50元", basePostTime))
	require.NoError(t, err)

	rec := store.saved()[0]
	assert.True(t, rec.SensitiveDataMasked)
	assert.NotEqual(t, "向【星巴克咖啡】付款28.50元", rec.NotificationText)
	assert.Equal(t, len([]rune("向【星巴克咖啡】付款28.50元")), len([]rune(rec.NotificationText)))
	assert.Equal(t, audit.StatusSuccessAuto, rec.Status)
	cents, ok := rec.Amount()
	require.True(t, ok)
	assert.Equal(t, int64(2850), cents)
	assert.Same(t, rec, outcome.Record)
}

func TestProcessor_ProcessBatch(t *testing.T) {
	events := []model.RawNotificationEvent{
		model.NewEvent(parser.AlipayPackage, "支付宝", "向【星巴克咖啡】付款28.50元", basePostTime),
		model.NewEvent(parser.AlipayPackage, "支付宝", "向【星巴克咖啡】付款28.50元", basePostTime),
		model.NewEvent(parser.WeChatPackage, "微信支付", "已支付¥25.00", basePostTime+60000),
		model.NewEvent("com.example.notes", "Notes", "hello", basePostTime),
	}

	t.Run("tallies statuses", func(t *testing.T) {
		store := newMemoryStore()
		p := newTestProcessor(store, testOptions())

		var seen []audit.ProcessingStatus
		summary, err := p.ProcessBatch(context.Background(), events, func(o Outcome) {
			seen = append(seen, o.Status)
		})
		require.NoError(t, err)
		assert.Equal(t, 4, summary.Processed)
		assert.Equal(t, 0, summary.Errors)
		assert.Equal(t, 1, summary.ByStatus[audit.StatusSkippedDuplicate])
		assert.Equal(t, 1, summary.ByStatus[audit.StatusFailedParse])
		assert.Equal(t, 2, summary.ByStatus[audit.StatusSuccessAuto]+summary.ByStatus[audit.StatusSuccessSemi])
		assert.Len(t, seen, 4)
		assert.Len(t, store.saved(), 4)
	})

	t.Run("continues after save errors", func(t *testing.T) {
		store := newMemoryStore()
		store.saveErr = errors.New("read-only database")
		p := newTestProcessor(store, testOptions())

		summary, err := p.ProcessBatch(context.Background(), events, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "4 of 4 events failed")
		assert.Equal(t, 4, summary.Errors)
	})

	t.Run("empty batch", func(t *testing.T) {
		p := newTestProcessor(newMemoryStore(), testOptions())
		_, err := p.ProcessBatch(context.Background(), nil, nil)
		assert.ErrorIs(t, err, common.ErrNoEvents)
	})

	t.Run("canceled", func(t *testing.T) {
		store := newMemoryStore()
		p := newTestProcessor(store, testOptions())
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		_, err := p.ProcessBatch(ctx, events, func(Outcome) {
			calls++
			cancel()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
