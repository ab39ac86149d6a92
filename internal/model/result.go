package model

import "fmt"

// ParseResult is the closed set of outcomes the parser registry reports.
// Implementations: Success, Unsupported, Skipped, Failed, Error.
type ParseResult interface {
	isParseResult()
	// Kind returns a short stable label for logging and statistics.
	Kind() string
}

// Success carries a parsed payment notification.
type Success struct {
	Notification PaymentNotification
}

// Unsupported means no parser is registered for the source app.
type Unsupported struct {
	Reason string
}

// Skipped means a parser exists but declined the event up front.
type Skipped struct {
	Reason string
}

// Failed means the parser ran but produced no notification.
// Err holds the rejection cause when the parser supplied one.
type Failed struct {
	Err    error
	Reason string
}

// Error means the parser failed unexpectedly. Cause is kept for diagnostics.
type Error struct {
	Cause   error
	Message string
}

func (Success) isParseResult()     {}
func (Unsupported) isParseResult() {}
func (Skipped) isParseResult()     {}
func (Failed) isParseResult()      {}
func (Error) isParseResult()       {}

// Kind implements ParseResult.
func (Success) Kind() string { return "success" }

// Kind implements ParseResult.
func (Unsupported) Kind() string { return "unsupported" }

// Kind implements ParseResult.
func (Skipped) Kind() string { return "skipped" }

// Kind implements ParseResult.
func (Failed) Kind() string { return "failed" }

// Kind implements ParseResult.
func (Error) Kind() string { return "error" }

func (e Error) String() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is / errors.As callers.
func (e Error) Unwrap() error { return e.Cause }

// Unwrap exposes the rejection cause.
func (f Failed) Unwrap() error { return f.Err }
