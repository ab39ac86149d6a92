// Package model defines the core domain models used throughout the application.
package model

import (
	"strings"
	"time"
)

// DefaultCurrency is the currency assumed for every supported provider.
const DefaultCurrency = "CNY"

// RawNotificationEvent is a single OS notification as delivered by the listener.
// It is never mutated after creation.
type RawNotificationEvent struct {
	Title           *string `json:"title,omitempty"`
	Text            *string `json:"text,omitempty"`
	NotificationKey *string `json:"notification_key,omitempty"`
	PackageName     string  `json:"package_name"`
	PostTime        int64   `json:"post_time"` // epoch millis
}

// TitleOrEmpty returns the title, or "" when absent.
func (e RawNotificationEvent) TitleOrEmpty() string {
	if e.Title == nil {
		return ""
	}
	return *e.Title
}

// TextOrEmpty returns the text, or "" when absent.
func (e RawNotificationEvent) TextOrEmpty() string {
	if e.Text == nil {
		return ""
	}
	return *e.Text
}

// KeyOrEmpty returns the notification key, or "" when absent.
func (e RawNotificationEvent) KeyOrEmpty() string {
	if e.NotificationKey == nil {
		return ""
	}
	return *e.NotificationKey
}

// Content joins title and text the way every parser reads them.
func (e RawNotificationEvent) Content() string {
	return strings.TrimSpace(e.TitleOrEmpty() + " " + e.TextOrEmpty())
}

// PostedAt converts PostTime to a time.Time.
func (e RawNotificationEvent) PostedAt() time.Time {
	return time.UnixMilli(e.PostTime)
}

// NewEvent is a convenience constructor for events with both title and text present.
func NewEvent(packageName, title, text string, postTime int64) RawNotificationEvent {
	return RawNotificationEvent{
		PackageName: packageName,
		Title:       &title,
		Text:        &text,
		PostTime:    postTime,
	}
}

// SourceType identifies the payment provider a notification came from.
type SourceType string

// Source type constants.
const (
	SourceAlipay   SourceType = "ALIPAY"
	SourceWeChat   SourceType = "WECHAT"
	SourceUnionPay SourceType = "UNIONPAY"
	SourceUnknown  SourceType = "UNKNOWN"
)

// Direction classifies which way money moved.
type Direction string

// Direction constants.
const (
	DirectionExpense  Direction = "EXPENSE"
	DirectionIncome   Direction = "INCOME"
	DirectionRefund   Direction = "REFUND"
	DirectionTransfer Direction = "TRANSFER"
	DirectionUnknown  Direction = "UNKNOWN"
)

// IsKnown reports whether the direction was resolved.
func (d Direction) IsKnown() bool {
	return d != "" && d != DirectionUnknown
}

// PaymentNotification is the structured payment event produced by a parser.
// AmountCents is always positive on any instance a parser returns.
type PaymentNotification struct {
	SourceApp          string     `json:"source_app"`
	SourceType         SourceType `json:"source_type"`
	Direction          Direction  `json:"direction"`
	Currency           string     `json:"currency"`
	RawMerchant        string     `json:"raw_merchant,omitempty"`
	NormalizedMerchant string     `json:"normalized_merchant,omitempty"`
	PaymentMethod      string     `json:"payment_method,omitempty"`
	NotificationKey    string     `json:"notification_key,omitempty"`
	Fingerprint        string     `json:"fingerprint"`
	RawText            string     `json:"raw_text,omitempty"` // kept only for low-confidence results
	OriginalTitle      string     `json:"original_title"`
	OriginalText       string     `json:"original_text"`
	Tags               []string   `json:"tags,omitempty"`
	AmountCents        int64      `json:"amount_cents"`
	PostedTime         int64      `json:"posted_time"`
	ParserVersion      int        `json:"parser_version"`
	Confidence         float64    `json:"confidence"`
}


// Merchant returns the normalized merchant, falling back to the raw one.
func (n PaymentNotification) Merchant() string {
	if n.NormalizedMerchant != "" {
		return n.NormalizedMerchant
	}
	return n.RawMerchant
}
