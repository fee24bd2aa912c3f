package analytics

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shortify/shortify/internal/model"
)

const (
	mobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

func sum(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func TestAggregate_Scenario(t *testing.T) {
	t.Parallel()

	events := []model.ClickEvent{
		{ShortID: "abc123", Timestamp: "2026-02-24T03:10:00Z", IP: "a1", UserAgent: mobileUA, Referer: "siteA"},
		{ShortID: "abc123", Timestamp: "2026-02-24T03:20:00Z", IP: "a2", UserAgent: mobileUA, Referer: "siteA"},
		{ShortID: "abc123", Timestamp: "2026-02-24T03:30:00Z", IP: "a3", UserAgent: desktopUA, Referer: "siteB"},
	}

	stats := Aggregate(events, 5)

	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if diff := cmp.Diff(map[string]int{"siteA": 2, "siteB": 1}, stats.ClicksByReferer); diff != "" {
		t.Errorf("referer mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"mobile": 2, "desktop": 1}, stats.ClicksByDevice); diff != "" {
		t.Errorf("device mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"12": 3}, stats.ClicksByHour); diff != "" {
		t.Errorf("hour mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"2026-02-24": 3}, stats.ClicksByDay); diff != "" {
		t.Errorf("day mismatch (-want +got):\n%s", diff)
	}

	if got := NewDetector(0, 0).CountSuspicious(events); got != 0 {
		t.Errorf("expected 0 suspicious clicks, got %d", got)
	}
}

func TestAggregate_MalformedTimestamp(t *testing.T) {
	t.Parallel()

	events := []model.ClickEvent{
		{Timestamp: "2026-02-24T15:00:00Z", UserAgent: mobileUA},
		{Timestamp: "not-a-time", UserAgent: mobileUA},
		{Timestamp: "", UserAgent: ""},
	}

	stats := Aggregate(events, 5)

	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if sum(stats.ClicksByHour) != 1 || sum(stats.ClicksByDay) != 1 {
		t.Errorf("expected only the valid event bucketed, got hours=%v days=%v", stats.ClicksByHour, stats.ClicksByDay)
	}
	if stats.ClicksByHour["00"] != 1 {
		t.Errorf("expected 15:00Z in display hour 00, got %v", stats.ClicksByHour)
	}
	if stats.ClicksByReferer[model.DirectReferer] != 3 {
		t.Errorf("expected 3 direct referers, got %v", stats.ClicksByReferer)
	}
	if stats.ClicksByDevice["unknown"] != 1 {
		t.Errorf("expected one unknown device, got %v", stats.ClicksByDevice)
	}
}

func TestAggregate_TopNWithOther(t *testing.T) {
	t.Parallel()

	var events []model.ClickEvent
	add := func(ref string, n int) {
		for i := 0; i < n; i++ {
			events = append(events, model.ClickEvent{Timestamp: "2026-02-24T00:00:00Z", Referer: ref})
		}
	}
	add("a", 5)
	add("b", 4)
	add("c", 3)
	add("d", 1)
	add("e", 1)

	stats := Aggregate(events, 2)

	want := map[string]int{"a": 5, "b": 4, "other": 5}
	if diff := cmp.Diff(want, stats.ClicksByReferer); diff != "" {
		t.Errorf("referer mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_NoOtherWhenAllKept(t *testing.T) {
	t.Parallel()

	events := []model.ClickEvent{{Referer: "x"}, {Referer: "y"}}
	stats := Aggregate(events, 5)

	if _, ok := stats.ClicksByReferer["other"]; ok {
		t.Errorf("expected no other bucket, got %v", stats.ClicksByReferer)
	}
}

func TestAggregate_TieKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	events := []model.ClickEvent{{Referer: "late"}, {Referer: "early"}, {Referer: "third"}}
	stats := Aggregate(events, 1)

	want := map[string]int{"late": 1, "other": 2}
	if diff := cmp.Diff(want, stats.ClicksByReferer); diff != "" {
		t.Errorf("referer mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_SumsMatchTotal(t *testing.T) {
	t.Parallel()

	uas := []string{mobileUA, desktopUA, "", "curl/8", "iPad", "Other/1"}
	for n := 1; n <= 40; n += 7 {
		var events []model.ClickEvent
		for i := 0; i < n; i++ {
			events = append(events, model.ClickEvent{
				Timestamp: fmt.Sprintf("2026-02-24T%02d:00:00Z", i%24),
				UserAgent: uas[i%len(uas)],
				Referer:   fmt.Sprintf("ref-%d", i%9),
			})
		}

		stats := Aggregate(events, 3)
		if sum(stats.ClicksByReferer) != stats.Total {
			t.Errorf("n=%d: referer sum %d != total %d", n, sum(stats.ClicksByReferer), stats.Total)
		}
		if sum(stats.ClicksByDevice) != stats.Total {
			t.Errorf("n=%d: device sum %d != total %d", n, sum(stats.ClicksByDevice), stats.Total)
		}
	}
}

func TestAggregate_OrderIndependentForDistinctCounts(t *testing.T) {
	t.Parallel()

	events := []model.ClickEvent{
		{Timestamp: "2026-02-24T01:00:00Z", Referer: "a", UserAgent: mobileUA},
		{Timestamp: "2026-02-24T02:00:00Z", Referer: "a", UserAgent: desktopUA},
		{Timestamp: "2026-02-24T03:00:00Z", Referer: "b", UserAgent: mobileUA},
	}
	reversed := []model.ClickEvent{events[2], events[1], events[0]}

	if diff := cmp.Diff(Aggregate(events, 5), Aggregate(reversed, 5)); diff != "" {
		t.Errorf("aggregate depends on order (-fwd +rev):\n%s", diff)
	}
}

func TestCounter_MostCommon(t *testing.T) {
	t.Parallel()

	c := NewCounter()
	c.Add("x", 1)
	c.Add("y", 3)
	c.Add("z", 1)
	c.Add("x", 1)

	got := c.MostCommon(0)
	want := []KeyCount{{"y", 3}, {"x", 2}, {"z", 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MostCommon mismatch (-want +got):\n%s", diff)
	}
	if c.Len() != 3 || c.Get("x") != 2 {
		t.Errorf("unexpected counter state: len=%d x=%d", c.Len(), c.Get("x"))
	}
}
