package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/autoledger/internal/common"
)

func TestEventReader_ReadLine(t *testing.T) {
	reader := NewEventReader(strings.NewReader("first\r\nsecond\nlast"))
	ctx := context.Background()

	for _, want := range []string{"first", "second", "last"} {
		line, err := reader.ReadLine(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	assert.Equal(t, 3, reader.Line())

	_, err := reader.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventReader_ContextCancellation(t *testing.T) {
	t.Run("already canceled", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer func() { _ = pw.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewEventReader(pr).ReadLine(ctx)
		assert.ErrorIs(t, err, ErrInputCancelled)
	})

	t.Run("canceled while blocked", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer func() { _ = pw.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := NewEventReader(pr).ReadLine(ctx)
		assert.ErrorIs(t, err, ErrInputCancelled)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestReadAllEvents(t *testing.T) {
	input := `# replay capture
{"package_name":"com.tencent.mm","title":"微信支付","text":"已支付¥25.00","post_time":1700000000000}

{"package_name":"com.unionpay","text":"转出 ¥200.00","post_time":1700000001000,"notification_key":"k1"}
`
	events, err := ReadAllEvents(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "com.tencent.mm", events[0].PackageName)
	assert.Equal(t, "微信支付", events[0].TitleOrEmpty())
	assert.Equal(t, int64(1700000000000), events[0].PostTime)

	assert.Nil(t, events[1].Title)
	assert.Equal(t, "转出 ¥200.00", events[1].TextOrEmpty())
	assert.Equal(t, "k1", events[1].KeyOrEmpty())
}

func TestReadAllEvents_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine string
		wantLen  int
	}{
		{
			name:     "broken json",
			input:    `{"package_name":"com.tencent.mm","post_time":1}` + "\n{oops\n",
			wantLine: "line 2",
			wantLen:  1,
		},
		{
			name:     "missing package",
			input:    `{"text":"x","post_time":1}`,
			wantLine: "line 1",
		},
		{
			name:     "missing post time",
			input:    `{"package_name":"com.tencent.mm"}`,
			wantLine: "line 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := ReadAllEvents(context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidEvent)
			assert.Contains(t, err.Error(), tt.wantLine)
			assert.Len(t, events, tt.wantLen)
		})
	}
}
