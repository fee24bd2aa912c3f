package model

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriodKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    PeriodKey
		wantErr bool
	}{
		{"P#1H", Period1H, false},
		{"p#24h", Period24H, false},
		{" P#5MIN ", Period5Min, false},
		{"P#7D", Period7D, false},
		{"P#2H", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriodKey(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPeriodKey) {
					t.Fatalf("expected ErrInvalidPeriodKey, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAllowedPeriodKeys_Sorted(t *testing.T) {
	t.Parallel()

	keys := AllowedPeriodKeys()
	if len(keys) != 6 {
		t.Fatalf("expected 6 keys, got %d", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
}

func TestWindowEndingAt(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 2, 24, 12, 0, 0, 500, time.UTC)
	w := WindowEndingAt(Period1H, end)

	if w.StartAt() != "2026-02-24T11:00:00Z" {
		t.Errorf("expected start 2026-02-24T11:00:00Z, got %s", w.StartAt())
	}
	if w.EndAt() != "2026-02-24T12:00:00Z" {
		t.Errorf("expected end 2026-02-24T12:00:00Z, got %s", w.EndAt())
	}
}

func TestClickEvent_Time(t *testing.T) {
	t.Parallel()

	if _, ok := (ClickEvent{Timestamp: "2026-02-24T12:38:41Z"}).Time(); !ok {
		t.Error("expected well-formed timestamp to parse")
	}
	if _, ok := (ClickEvent{Timestamp: "2026-02-24 12:38"}).Time(); ok {
		t.Error("expected malformed timestamp to be rejected")
	}
	if _, ok := (ClickEvent{}).Time(); ok {
		t.Error("expected empty timestamp to be rejected")
	}
}

func TestClickEvent_Validate(t *testing.T) {
	t.Parallel()

	valid := ClickEvent{ShortID: "abc123", Timestamp: "2026-02-24T12:38:41Z"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}

	missing := valid
	missing.ShortID = ""
	if err := missing.Validate(); !errors.Is(err, ErrShortIDRequired) {
		t.Errorf("expected ErrShortIDRequired, got %v", err)
	}

	badTs := valid
	badTs.Timestamp = "yesterday"
	if err := badTs.Validate(); !errors.Is(err, ErrTimestampInvalid) {
		t.Errorf("expected ErrTimestampInvalid, got %v", err)
	}
}
