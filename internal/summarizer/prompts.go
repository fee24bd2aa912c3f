package summarizer

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shortify/shortify/internal/analytics"
)

// Categories is the closed label set the trend prompt allows.
var Categories = []string{"video", "blog", "news", "shopping", "social", "community", "docs", "dev", "music", "other"}

// RankedURL is a normalized URL with its window clicks.
type RankedURL struct {
	URL    string `json:"url"`
	Clicks int    `json:"clicks"`
}

// RankedTime is a five-minute display slot with its window clicks.
type RankedTime struct {
	Time   string `json:"time"`
	Clicks int    `json:"clicks"`
}

func toURLClicks(in []analytics.KeyCount) []RankedURL {
	out := make([]RankedURL, 0, len(in))
	for _, kc := range in {
		out = append(out, RankedURL{URL: kc.Key, Clicks: kc.Count})
	}
	return out
}

func toTimeClicks(in []analytics.KeyCount) []RankedTime {
	out := make([]RankedTime, 0, len(in))
	for _, kc := range in {
		out = append(out, RankedTime{Time: kc.Key, Clicks: kc.Count})
	}
	return out
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}

// TrendPrompt asks for the top domains with a category each, plus category totals.
func TrendPrompt(topURLs []analytics.KeyCount) string {
	payload := compactJSON(map[string]any{"topUrls": toURLClicks(topURLs)})

	var b strings.Builder
	b.WriteString("You are a classifier. Return ONLY valid JSON. No extra text.\n")
	b.WriteString("Task:\n")
	b.WriteString("1) From each input url, extract the domain in the form like 'youtube.com' or 'notion.so'.\n")
	b.WriteString("2) Aggregate clicks by domain.\n")
	b.WriteString("3) Choose top 5 domains by total clicks.\n")
	b.WriteString("4) Classify EACH top domain into ONE category from this fixed set:\n")
	b.WriteString("[" + strings.Join(Categories, ", ") + "]\n")
	b.WriteString("5) Produce topCategories by summing clicks of domains in the same category.\n")
	b.WriteString("Input JSON:\n")
	b.WriteString(payload + "\n\n")
	b.WriteString("Output JSON schema:\n")
	b.WriteString(`{"topDomains":[{"domain":"example.com","clicks":123,"category":"video"}],"topCategories":[{"category":"video","clicks":186}]}` + "\n")
	b.WriteString("Rules:\n")
	b.WriteString("- topDomains length MUST be 5 (or less if distinct domains <5).\n")
	b.WriteString("- topCategories length MUST be 5 (or less if distinct categories <5).\n")
	b.WriteString("- Sort both lists by clicks desc.\n")
	b.WriteString("- Use only categories from the fixed set.\n")
	return b.String()
}

// InsightPrompt asks for three distinct share times in HH:MM.
func InsightPrompt(topBins []analytics.KeyCount) string {
	payload := compactJSON(map[string]any{"topTimeBins": toTimeClicks(topBins)})

	var b strings.Builder
	b.WriteString("You are a recommender. Return ONLY valid JSON. No extra text.\n")
	b.WriteString("Timezone: Asia/Seoul (KST).\n")
	b.WriteString("Goal: output exactly 3 best share times in HH:MM.\n")
	b.WriteString("Input JSON:\n")
	b.WriteString(payload + "\n\n")
	b.WriteString("Output JSON schema (MUST follow exactly):\n")
	b.WriteString(`{"top3":[{"time":"HH:MM"},{"time":"HH:MM"},{"time":"HH:MM"}]}` + "\n")
	b.WriteString("Rules (MUST follow):\n")
	b.WriteString("- top3 MUST contain exactly 3 items.\n")
	b.WriteString("- All 3 times MUST be unique.\n")
	b.WriteString("- Prefer times from the input list.\n")
	b.WriteString("- If input has fewer than 3 unique times, you MUST still output 3 unique times by generating\n")
	b.WriteString("  additional times in 5-minute steps around the best time.\n")
	return b.String()
}
