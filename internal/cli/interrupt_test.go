package cli

import (
	"bytes"
	"context"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	handler := NewInterruptHandler(nil, "")
	assert.Equal(t, os.Stdout, handler.writer)
	assert.False(t, handler.WasInterrupted())
}

func TestInterruptHandler_Message(t *testing.T) {
	tests := []struct {
		name    string
		hint    string
		wantOut []string
	}{
		{
			name:    "with hint",
			hint:    "Resume with: autoledger replay --skip 12",
			wantOut: []string{"Interrupted!", "Debug records written so far are kept.", "--skip 12"},
		},
		{
			name:    "without hint",
			wantOut: []string{"Interrupted!", "Debug records written so far are kept."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &syncBuffer{}
			handler := NewInterruptHandler(output, tt.hint)

			handler.interrupt()
			handler.interrupt()

			assert.True(t, handler.WasInterrupted())
			for _, want := range tt.wantOut {
				assert.Contains(t, output.String(), want)
			}
			assert.Equal(t, 1, bytes.Count([]byte(output.String()), []byte("Interrupted!")))
		})
	}
}

func TestInterruptHandler_Stop(t *testing.T) {
	handler := NewInterruptHandler(&syncBuffer{}, "")
	ctx, stop := handler.HandleInterrupts(context.Background())

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled before stop")
	default:
	}

	stop()
	stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stop should cancel the context")
	}
	assert.False(t, handler.WasInterrupted())
}

func TestInterruptHandler_Signal(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output, "")
	ctx, stop := handler.HandleInterrupts(context.Background())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt did not cancel the context")
	}
	assert.True(t, handler.WasInterrupted())
	assert.Contains(t, output.String(), "Interrupted!")
}
