package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidPeriodKey is returned for period keys outside the enumerated set.
var ErrInvalidPeriodKey = errors.New("invalid period key")

// PeriodKey labels an aggregation window.
type PeriodKey string

// Supported period keys.
const (
	Period1Min  PeriodKey = "P#1MIN"
	Period5Min  PeriodKey = "P#5MIN"
	Period30Min PeriodKey = "P#30MIN"
	Period1H    PeriodKey = "P#1H"
	Period24H   PeriodKey = "P#24H"
	Period7D    PeriodKey = "P#7D"
)

var periodDurations = map[PeriodKey]time.Duration{
	Period1Min:  time.Minute,
	Period5Min:  5 * time.Minute,
	Period30Min: 30 * time.Minute,
	Period1H:    time.Hour,
	Period24H:   24 * time.Hour,
	Period7D:    7 * 24 * time.Hour,
}

// ParsePeriodKey normalizes s to upper case and validates it.
func ParsePeriodKey(s string) (PeriodKey, error) {
	key := PeriodKey(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := periodDurations[key]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriodKey, s)
	}
	return key, nil
}

// Duration returns the window length, or zero for unknown keys.
func (p PeriodKey) Duration() time.Duration {
	return periodDurations[p]
}

// Valid reports whether p is one of the supported keys.
func (p PeriodKey) Valid() bool {
	_, ok := periodDurations[p]
	return ok
}

func (p PeriodKey) String() string {
	return string(p)
}

// AllowedPeriodKeys returns the supported keys in lexical order.
func AllowedPeriodKeys() []string {
	keys := make([]string, 0, len(periodDurations))
	for k := range periodDurations {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

// Window is a closed time range [Start, End] in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowEndingAt returns the window of period p that ends at end.
func WindowEndingAt(p PeriodKey, end time.Time) Window {
	end = end.UTC().Truncate(time.Second)
	return Window{Start: end.Add(-p.Duration()), End: end}
}

// StartAt returns the formatted window start.
func (w Window) StartAt() string {
	return FormatTimestamp(w.Start)
}

// EndAt returns the formatted window end.
func (w Window) EndAt() string {
	return FormatTimestamp(w.End)
}
