package model

import "time"

// OtherReferer collects referers outside the top-N.
const OtherReferer = "other"

// Stats is the compact per-window summary of click events.
type Stats struct {
	Total           int            `json:"totalClicks"`
	ClicksByHour    map[string]int `json:"clicksByHour"`    // "00".."23", display timezone
	ClicksByDay     map[string]int `json:"clicksByDay"`     // "YYYY-MM-DD", display timezone
	ClicksByReferer map[string]int `json:"clicksByReferer"` // top-N plus "other"
	ClicksByDevice  map[string]int `json:"clicksByDevice"`
}

// PeriodInsight is the latest snapshot for one (identifier, period) pair.
// Each run overwrites the previous snapshot.
type PeriodInsight struct {
	ShortID   string    `json:"shortId"`
	PeriodKey PeriodKey `json:"periodKey"`
	StartAt   string    `json:"startAt"`
	EndAt     string    `json:"endAt"`
	Stats
	SuspiciousClicks int       `json:"suspiciousClicks"`
	SuspiciousRate   float64   `json:"suspiciousRate"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// AlertState maps identifiers to the last suspicious count already notified.
type AlertState map[string]int
