package summarizer

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shortify/shortify/internal/analytics"
)

// RecommendationCount is the number of share times always returned.
const RecommendationCount = 3

const (
	slotMinutes = 5
	dayMinutes  = 24 * 60
)

// Recommendation is a share time with its locally counted clicks.
type Recommendation struct {
	Time   string `json:"time"`
	Clicks int    `json:"clicks"`
}

// TopTimes reads up to limit distinct times from a generated "top3" value.
// Items may be plain strings or objects with a "time" field; anything else
// is ignored.
func TopTimes(v any, limit int) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, limit)
	for _, item := range items {
		var t string
		switch x := item.(type) {
		case string:
			t = strings.TrimSpace(x)
		case map[string]any:
			if s, ok := x["time"].(string); ok {
				t = strings.TrimSpace(s)
			}
		}
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Recommend attaches local click counts to times and pads the list to
// RecommendationCount with nearby five-minute slots around the best time:
// the anchor itself, then +5, -5, +10, -10 minutes and so on. The anchor is
// the first parseable returned time, else the busiest local slot.
func Recommend(times []string, slots *analytics.Counter) []Recommendation {
	out := make([]Recommendation, 0, RecommendationCount)
	for _, t := range times {
		if len(out) >= RecommendationCount {
			break
		}
		out = append(out, Recommendation{Time: t, Clicks: slots.Get(t)})
	}
	if len(out) >= RecommendationCount {
		return out
	}

	var (
		anchor int
		ok     bool
	)
	for _, t := range times {
		if anchor, ok = parseClock(t); ok {
			break
		}
	}
	if !ok {
		best := slots.MostCommon(1)
		if len(best) == 0 {
			return out
		}
		if anchor, ok = parseClock(best[0].Key); !ok {
			return out
		}
	}

	for step := 0; len(out) < RecommendationCount && step <= dayMinutes/slotMinutes; step++ {
		offsets := []int{step * slotMinutes, -step * slotMinutes}
		if step == 0 {
			offsets = offsets[:1]
		}
		for _, off := range offsets {
			t := formatClock(anchor + off)
			if hasTime(out, t) {
				continue
			}
			out = append(out, Recommendation{Time: t, Clicks: slots.Get(t)})
			if len(out) >= RecommendationCount {
				break
			}
		}
	}
	return out
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func formatClock(minutes int) string {
	m := ((minutes % dayMinutes) + dayMinutes) % dayMinutes
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func hasTime(recs []Recommendation, t string) bool {
	for _, r := range recs {
		if r.Time == t {
			return true
		}
	}
	return false
}
