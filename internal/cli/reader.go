package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Veraticus/autoledger/internal/common"
	"github.com/Veraticus/autoledger/internal/model"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// EventReader reads newline-delimited JSON notification events. Blank lines
// and lines starting with '#' are skipped. Reads return as soon as the context
// is done, even while the underlying reader blocks.
type EventReader struct {
	reader      *bufio.Reader
	line        int
	eof         bool
	readingLock sync.Mutex
}

// NewEventReader wraps r.
func NewEventReader(r io.Reader) *EventReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	return &EventReader{reader: bufio.NewReader(r)}
}

// Line returns the number of the last line read.
func (r *EventReader) Line() int {
	return r.line
}

// ReadLine reads one line without its trailing newline. The final line of
// input need not end in a newline; io.EOF is returned once input is exhausted.
func (r *EventReader) ReadLine(ctx context.Context) (string, error) {
	if r.eof {
		return "", io.EOF
	}

	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		r.readingLock.Lock()
		defer r.readingLock.Unlock()

		value, err := r.reader.ReadString('\n')
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err == io.EOF {
			r.eof = true
			if res.value == "" {
				return "", io.EOF
			}
		} else if res.err != nil {
			return "", res.err
		}
		r.line++
		return strings.TrimRight(res.value, "\r\n"), nil
	}
}

// Next decodes the next event.
func (r *EventReader) Next(ctx context.Context) (model.RawNotificationEvent, error) {
	for {
		line, err := r.ReadLine(ctx)
		if err != nil {
			return model.RawNotificationEvent{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		event, err := DecodeEvent([]byte(line))
		if err != nil {
			return model.RawNotificationEvent{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return event, nil
	}
}

// ReadAllEvents decodes every event in r.
func ReadAllEvents(ctx context.Context, r io.Reader) ([]model.RawNotificationEvent, error) {
	reader := NewEventReader(r)
	var events []model.RawNotificationEvent
	for {
		event, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

// DecodeEvent parses one JSON event and checks its required fields.
func DecodeEvent(data []byte) (model.RawNotificationEvent, error) {
	var event model.RawNotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return event, fmt.Errorf("%w: %w", common.ErrInvalidEvent, err)
	}
	if strings.TrimSpace(event.PackageName) == "" {
		return event, fmt.Errorf("%w: missing package_name", common.ErrInvalidEvent)
	}
	if event.PostTime <= 0 {
		return event, fmt.Errorf("%w: missing post_time", common.ErrInvalidEvent)
	}
	return event, nil
}
