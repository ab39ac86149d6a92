package parser

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/autoledger/internal/model"
)

// Registry maps app ids to parsers and is the single entry point for parsing.
// The parser list is fixed at construction; the lookup map is built once on
// first use. Safe for concurrent use.
type Registry struct {
	byPackage   map[string]*registered
	parsers     []*registered
	unsupported atomic.Int64
	once        sync.Once
}

type registered struct {
	parser Parser
	stats  counters
}

type counters struct {
	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	skips     atomic.Int64
	errors    atomic.Int64
}

// ParserStats is a point-in-time snapshot of one parser's counters.
type ParserStats struct {
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Attempts  int64  `json:"attempts"`
	Successes int64  `json:"successes"`
	Failures  int64  `json:"failures"`
	Skips     int64  `json:"skips"`
	Errors    int64  `json:"errors"`
}

// SuccessRate is successes over attempts, or 0 before any attempt.
func (s ParserStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

// NewRegistry creates a registry over the given parsers. When two parsers
// claim the same package, the one registered last wins.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make([]*registered, 0, len(parsers))}
	for _, p := range parsers {
		if p == nil {
			continue
		}
		r.parsers = append(r.parsers, &registered{parser: p})
	}
	return r
}

// NewDefaultRegistry creates a registry with every built-in provider.
func NewDefaultRegistry(thresholds Thresholds) *Registry {
	return NewRegistry(
		NewAlipayParser(thresholds),
		NewWeChatParser(thresholds),
		NewUnionPayParser(thresholds),
	)
}

func (r *Registry) lookup() map[string]*registered {
	r.once.Do(func() {
		m := make(map[string]*registered)
		for _, reg := range r.parsers {
			for _, pkg := range reg.parser.SupportedPackages() {
				m[pkg] = reg
			}
		}
		r.byPackage = m
	})
	return r.byPackage
}

// ParserFor returns the parser registered for a package.
func (r *Registry) ParserFor(packageName string) (Parser, bool) {
	reg, ok := r.lookup()[packageName]
	if !ok {
		return nil, false
	}
	return reg.parser, true
}

// Parse routes the event to its parser and reports the outcome as data.
// It never panics and never returns an error.
func (r *Registry) Parse(event model.RawNotificationEvent) model.ParseResult {
	reg, ok := r.lookup()[event.PackageName]
	if !ok {
		r.unsupported.Add(1)
		return model.Unsupported{Reason: fmt.Sprintf("no parser registered for %q", event.PackageName)}
	}

	reg.stats.attempts.Add(1)

	accepted, err := safeCanParse(reg.parser, event)
	if err != nil {
		reg.stats.errors.Add(1)
		return model.Error{Message: fmt.Sprintf("%s pre-filter failed", reg.parser.Name()), Cause: err}
	}
	if !accepted {
		reg.stats.skips.Add(1)
		return model.Skipped{Reason: fmt.Sprintf("%s declined the notification", reg.parser.Name())}
	}

	n, err := safeParse(reg.parser, event)
	switch {
	case err != nil && IsRejection(err):
		reg.stats.failures.Add(1)
		return model.Failed{Reason: err.Error(), Err: err}
	case err != nil:
		reg.stats.errors.Add(1)
		return model.Error{Message: fmt.Sprintf("%s failed", reg.parser.Name()), Cause: err}
	case n == nil:
		reg.stats.failures.Add(1)
		return model.Failed{Reason: fmt.Sprintf("%s produced no notification", reg.parser.Name())}
	case n.AmountCents <= 0:
		reg.stats.failures.Add(1)
		return model.Failed{Reason: "non-positive amount", Err: ErrNoAmount}
	}

	reg.stats.successes.Add(1)
	return model.Success{Notification: *n}
}

// safeCanParse converts a pre-filter panic into an error.
func safeCanParse(p Parser, event model.RawNotificationEvent) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("parser panic: %v", rec)
		}
	}()
	return p.CanParse(event), nil
}

// safeParse converts a parser panic into an error.
func safeParse(p Parser, event model.RawNotificationEvent) (n *model.PaymentNotification, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			n = nil
			err = fmt.Errorf("parser panic: %v", rec)
		}
	}()
	return p.Parse(event)
}

// Parsers returns the registered parsers in registration order.
func (r *Registry) Parsers() []Parser {
	out := make([]Parser, len(r.parsers))
	for i, reg := range r.parsers {
		out[i] = reg.parser
	}
	return out
}

// Stats returns a snapshot of every parser's counters in registration order.
func (r *Registry) Stats() []ParserStats {
	out := make([]ParserStats, len(r.parsers))
	for i, reg := range r.parsers {
		out[i] = ParserStats{
			Name:      reg.parser.Name(),
			Version:   reg.parser.Version(),
			Attempts:  reg.stats.attempts.Load(),
			Successes: reg.stats.successes.Load(),
			Failures:  reg.stats.failures.Load(),
			Skips:     reg.stats.skips.Load(),
			Errors:    reg.stats.errors.Load(),
		}
	}
	return out
}

// UnsupportedCount is the number of events no parser claimed.
func (r *Registry) UnsupportedCount() int64 {
	return r.unsupported.Load()
}
