package report

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testDay() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func testEvent(t *testing.T, summary string) Event {
	t.Helper()
	e, err := NewEvent(EventParams{
		Summary:    summary,
		Continent:  "Asia",
		Type:       "flood",
		Importance: 3,
		Timestamp:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewEvent error: %v", err)
	}
	return e
}

func TestReport_InsertionOrderPreserved(t *testing.T) {
	r := New(testDay())
	var want []string
	for i := 0; i < 20; i++ {
		summary := fmt.Sprintf("event %02d", i)
		want = append(want, summary)
		if err := r.AddEvent(testEvent(t, summary)); err != nil {
			t.Fatalf("AddEvent error: %v", err)
		}
	}

	doc, err := r.RenderDocument()
	if err != nil {
		t.Fatalf("RenderDocument error: %v", err)
	}
	if len(doc.Events) != len(want) {
		t.Fatalf("len(events) = %d, want %d", len(doc.Events), len(want))
	}
	for i, sec := range doc.Events {
		if sec.Summary != want[i] {
			t.Errorf("events[%d].summary = %q, want %q", i, sec.Summary, want[i])
		}
	}
}

func TestReport_DuplicateEventsAllowed(t *testing.T) {
	r := New(testDay())
	e := testEvent(t, "same")
	_ = r.AddEvent(e)
	_ = r.AddEvent(e)
	if r.Len() != 2 {
		t.Errorf("len = %d, want 2 (no dedup)", r.Len())
	}
}

func TestReport_RenderIdempotent(t *testing.T) {
	r := New(testDay())
	_ = r.AddEvent(testEvent(t, "one"))
	r.SetHistoricalContext("background")
	r.SetTimeline([]TimelineEntry{{Timestamp: time.Date(2023, 12, 31, 10, 0, 0, 0, time.UTC), Summary: "prior"}})

	first, err := r.RenderDocument()
	if err != nil {
		t.Fatalf("first render error: %v", err)
	}
	second, err := r.RenderDocument()
	if err != nil {
		t.Fatalf("second render error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two renders without mutation differ")
	}
}

func TestReport_ReadOnlyAfterRender(t *testing.T) {
	r := New(testDay())
	_ = r.AddEvent(testEvent(t, "one"))
	if _, err := r.RenderDocument(); err != nil {
		t.Fatalf("render error: %v", err)
	}
	if err := r.AddEvent(testEvent(t, "late")); !errors.Is(err, ErrReportClosed) {
		t.Errorf("err = %v, want ErrReportClosed", err)
	}
}

func TestReport_RenderWithoutDate(t *testing.T) {
	r := &Report{}
	if _, err := r.RenderDocument(); !errors.Is(err, ErrNoDate) {
		t.Errorf("err = %v, want ErrNoDate", err)
	}
}

func TestReport_AnalysisTruncation(t *testing.T) {
	long := strings.Repeat("a", 1500)
	e, err := NewEvent(EventParams{
		Summary:    "Flood",
		Importance: 4,
		Analysis:   long,
		Timestamp:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewEvent error: %v", err)
	}

	r := New(testDay())
	_ = r.AddEvent(e)
	doc, err := r.RenderDocument()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}

	got := doc.Events[0].Analysis
	if want := strings.Repeat("a", DocAnalysisLimit) + "..."; got != want {
		t.Errorf("document analysis = %d chars (suffix %q), want exactly %d + ellipsis",
			len(got), got[len(got)-5:], DocAnalysisLimit)
	}

	chat := ChatSummary(e)
	want := strings.Repeat("a", ChatAnalysisLimit) + "..."
	if !strings.Contains(chat, want) {
		t.Errorf("chat summary missing %d-char excerpt with ellipsis", ChatAnalysisLimit)
	}
	if strings.Contains(chat, strings.Repeat("a", ChatAnalysisLimit+1)) {
		t.Error("chat summary analysis exceeds cap")
	}
}

func TestReport_AnalysisUnderLimitNotTruncated(t *testing.T) {
	e, err := NewEvent(EventParams{
		Summary:    "Flood",
		Importance: 4,
		Analysis:   strings.Repeat("b", DocAnalysisLimit),
		Timestamp:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewEvent error: %v", err)
	}
	r := New(testDay())
	_ = r.AddEvent(e)
	doc, _ := r.RenderDocument()
	if strings.HasSuffix(doc.Events[0].Analysis, "...") {
		t.Error("analysis at the limit must not be truncated")
	}
}

func TestReport_TimelineWindow(t *testing.T) {
	r := New(testDay())
	var entries []TimelineEntry
	for i := 0; i < 15; i++ {
		entries = append(entries, TimelineEntry{
			Timestamp: time.Date(2023, 12, 20+i%10, 8, 0, 0, 0, time.UTC),
			Summary:   fmt.Sprintf("prior %02d", i),
		})
	}
	r.SetTimeline(entries)

	doc, err := r.RenderDocument()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if len(doc.Timeline) != TimelineWindow {
		t.Fatalf("timeline = %d entries, want %d", len(doc.Timeline), TimelineWindow)
	}
	for i, line := range doc.Timeline {
		want := fmt.Sprintf("prior %02d", i+5)
		if !strings.HasSuffix(line, want) {
			t.Errorf("timeline[%d] = %q, want suffix %q", i, line, want)
		}
		if !strings.HasPrefix(line, "[") {
			t.Errorf("timeline[%d] = %q, want [timestamp] prefix", i, line)
		}
	}
}

func TestReport_SectionOrder(t *testing.T) {
	r := New(testDay())
	r.SetHistoricalContext("ctx")
	r.SetTimeline([]TimelineEntry{{Timestamp: time.Now(), Summary: "prior"}})
	_ = r.AddEvent(testEvent(t, "one"))

	doc, err := r.RenderDocument()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if doc.Title == "" || !strings.Contains(doc.Title, "2024-01-01") {
		t.Errorf("cover title = %q, want report date included", doc.Title)
	}
	if doc.HistoricalContext != "ctx" {
		t.Errorf("historical context = %q", doc.HistoricalContext)
	}
	if len(doc.Timeline) != 1 || len(doc.Events) != 1 {
		t.Errorf("timeline/events = %d/%d, want 1/1", len(doc.Timeline), len(doc.Events))
	}
}

func TestReport_OptionalFieldsOmitted(t *testing.T) {
	e, err := NewEvent(EventParams{
		Summary:    "Quake",
		Importance: 2,
		Timestamp:  time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewEvent error: %v", err)
	}
	r := New(testDay())
	_ = r.AddEvent(e)

	doc, err := r.RenderDocument()
	if err != nil {
		t.Fatalf("render must not fail on missing optional fields: %v", err)
	}
	sec := doc.Events[0]
	if sec.Deaths != nil || sec.Declarations != "" || len(sec.Links) != 0 || sec.Analysis != "" {
		t.Error("optional fields should be absent, not defaulted")
	}
}

func TestReport_HistoricalContextLastWriteWins(t *testing.T) {
	r := New(testDay())
	r.SetHistoricalContext("first")
	r.SetHistoricalContext("second")
	doc, _ := r.RenderDocument()
	if doc.HistoricalContext != "second" {
		t.Errorf("historical context = %q, want second", doc.HistoricalContext)
	}
}

func TestChatSummary_Fields(t *testing.T) {
	d := 120
	e, err := NewEvent(EventParams{
		Summary:      "Flood",
		Continent:    "Asia",
		Type:         "flood",
		Importance:   4,
		Deaths:       &d,
		Declarations: "state of emergency",
		Links:        []string{"https://example.com/a"},
		Analysis:     "short analysis",
		Timestamp:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewEvent error: %v", err)
	}

	s := ChatSummary(e)
	for _, want := range []string{"**Flood**", "Asia", "flood", "importance 4/5", "Deaths: 120", "state of emergency", "https://example.com/a", "short analysis"} {
		if !strings.Contains(s, want) {
			t.Errorf("chat summary missing %q:\n%s", want, s)
		}
	}
}

func TestJournal_BucketingScenario(t *testing.T) {
	clock, err := NewClock(23, 30, time.UTC)
	if err != nil {
		t.Fatalf("NewClock error: %v", err)
	}
	j := NewJournal(clock)

	early, err := j.For(time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("For error: %v", err)
	}
	_ = early.AddEvent(testEvent(t, "Flood"))

	late, err := j.For(time.Date(2024, 1, 1, 23, 45, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("For error: %v", err)
	}
	_ = late.AddEvent(testEvent(t, "Flood"))

	if got := DayKey(early.Date()); got != "2024-01-01" {
		t.Errorf("early report day = %s, want 2024-01-01", got)
	}
	if got := DayKey(late.Date()); got != "2024-01-02" {
		t.Errorf("late report day = %s, want 2024-01-02", got)
	}
	if early == late {
		t.Error("reports across the cutoff must be distinct")
	}
}

func TestJournal_LazyCreationAndClose(t *testing.T) {
	clock, _ := NewClock(23, 30, time.UTC)
	j := NewJournal(clock)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if j.Peek(day) != nil {
		t.Error("report must not exist before first use")
	}
	r := j.Day(day)
	if j.Peek(day) != r {
		t.Error("Day must return the created report")
	}
	if again := j.Day(day); again != r {
		t.Error("Day must be stable per date")
	}

	j.Close(day)
	if j.Peek(day) != nil {
		t.Error("Close must drop the day")
	}
}
