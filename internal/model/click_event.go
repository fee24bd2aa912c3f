// Package model defines domain entities for the application.
package model

import (
	"errors"
	"time"
)

// TimestampLayout is the wire layout of click timestamps (UTC, second precision).
const TimestampLayout = "2006-01-02T15:04:05Z"

// DirectReferer is the referer recorded when the request had none.
const DirectReferer = "direct"

// Field limits applied when click events are written.
const (
	maxShortIDLength = 64
	maxMetaLength    = 500
)

// Validation errors for click events.
var (
	ErrShortIDRequired  = errors.New("short_id is required")
	ErrShortIDTooLong   = errors.New("short_id exceeds maximum length")
	ErrTimestampInvalid = errors.New("timestamp must use 2006-01-02T15:04:05Z layout")
	ErrUserAgentTooLong = errors.New("user_agent too long")
	ErrRefererTooLong   = errors.New("referer too long")
)

// ClickEvent is a single redirect recorded for a short identifier.
// Events are immutable once written; the analytics core only reads them.
type ClickEvent struct {
	ShortID   string `json:"shortId"`
	Timestamp string `json:"timestamp"` // UTC, TimestampLayout
	IP        string `json:"ip"`        // hashed client fingerprint, opaque
	UserAgent string `json:"userAgent"`
	Referer   string `json:"referer"`
}

// Time parses the event timestamp. ok is false for missing or malformed values.
func (e ClickEvent) Time() (time.Time, bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RefererOrDirect returns the referer, substituting DirectReferer when empty.
func (e ClickEvent) RefererOrDirect() string {
	if e.Referer == "" {
		return DirectReferer
	}
	return e.Referer
}

// Validate checks the fields a writer must provide.
func (e ClickEvent) Validate() error {
	if e.ShortID == "" {
		return ErrShortIDRequired
	}
	if len(e.ShortID) > maxShortIDLength {
		return ErrShortIDTooLong
	}
	if _, ok := e.Time(); !ok {
		return ErrTimestampInvalid
	}
	if len(e.UserAgent) > maxMetaLength {
		return ErrUserAgentTooLong
	}
	if len(e.Referer) > maxMetaLength {
		return ErrRefererTooLong
	}
	return nil
}

// FormatTimestamp renders t in the click timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
