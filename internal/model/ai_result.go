package model

import (
	"encoding/json"
	"time"
)

// AIResult is one entry of the append-only summary log.
// Trend and Insight are stored as generated JSON documents; either may be nil.
type AIResult struct {
	ID          string          `json:"id"`
	PeriodKey   PeriodKey       `json:"periodKey"`
	GeneratedAt time.Time       `json:"aiGeneratedAt"`
	Trend       json.RawMessage `json:"aiTrend,omitempty"`
	Insight     json.RawMessage `json:"aiInsight,omitempty"`
}

// TimeBin is a labelled click count ("HH" or "HH:MM").
type TimeBin struct {
	Time   string `json:"time"`
	Clicks int    `json:"clicks"`
}
