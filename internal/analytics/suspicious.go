package analytics

import (
	"sort"
	"time"

	"github.com/shortify/shortify/internal/classify"
	"github.com/shortify/shortify/internal/model"
)

// Detector defaults.
const (
	DefaultBurstWindow    = 60 * time.Second
	DefaultBurstThreshold = 10
)

// Detector flags suspicious clicks by two OR-ed rules:
// a bot signature in the user agent, and bursts of at least Threshold clicks
// sharing (IP, user agent) within Window.
type Detector struct {
	Window    time.Duration
	Threshold int
}

// NewDetector returns a Detector, applying defaults to non-positive values.
func NewDetector(window time.Duration, threshold int) Detector {
	if window <= 0 {
		window = DefaultBurstWindow
	}
	if threshold <= 0 {
		threshold = DefaultBurstThreshold
	}
	return Detector{Window: window, Threshold: threshold}
}

// clickKey identifies a click for deduplication. It is not a primary key:
// two distinct clicks with identical fields collapse into one.
type clickKey struct {
	timestamp string
	ip        string
	userAgent string
}

func keyOf(e model.ClickEvent) clickKey {
	return clickKey{timestamp: e.Timestamp, ip: e.IP, userAgent: e.UserAgent}
}

type groupKey struct {
	ip        string
	userAgent string
}

type timedClick struct {
	at  time.Time
	key clickKey
}

// IsSuspectSignature applies the signature rule alone.
func IsSuspectSignature(e model.ClickEvent) bool {
	return classify.IsBot(e.UserAgent)
}

// CountSuspicious returns the number of distinct suspicious clicks.
//
// Only the first qualifying burst per (IP, user agent) group is charged; a
// group with two separate bursts is under-counted.
func (d Detector) CountSuspicious(events []model.ClickEvent) int {
	suspicious := make(map[clickKey]struct{})

	for _, e := range events {
		if IsSuspectSignature(e) {
			suspicious[keyOf(e)] = struct{}{}
		}
	}

	groups := make(map[groupKey][]timedClick)
	for _, e := range events {
		if e.IP == "" || e.UserAgent == "" || e.Timestamp == "" {
			continue
		}
		at, ok := e.Time()
		if !ok {
			continue
		}
		g := groupKey{ip: e.IP, userAgent: e.UserAgent}
		groups[g] = append(groups[g], timedClick{at: at, key: keyOf(e)})
	}

	for _, clicks := range groups {
		for _, key := range d.firstBurst(clicks) {
			suspicious[key] = struct{}{}
		}
	}

	return len(suspicious)
}

// firstBurst returns the clicks of the first window holding Threshold or more clicks.
func (d Detector) firstBurst(clicks []timedClick) []clickKey {
	if len(clicks) < d.Threshold {
		return nil
	}
	sort.SliceStable(clicks, func(i, j int) bool {
		return clicks[i].at.Before(clicks[j].at)
	})

	i := 0
	for j := range clicks {
		for clicks[j].at.Sub(clicks[i].at) > d.Window {
			i++
		}
		if j-i+1 >= d.Threshold {
			keys := make([]clickKey, 0, j-i+1)
			for k := i; k <= j; k++ {
				keys = append(keys, clicks[k].key)
			}
			return keys
		}
	}
	return nil
}
