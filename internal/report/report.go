package report

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DocAnalysisLimit caps the analysis excerpt in the rendered document.
	DocAnalysisLimit = 1000
	// ChatAnalysisLimit caps the analysis excerpt in chat previews.
	ChatAnalysisLimit = 300
	// TimelineWindow is how many trailing timeline entries a document shows.
	TimelineWindow = 10
)

// ErrNoDate indicates a report was rendered without a date set. This is a
// programming error and is never swallowed.
var ErrNoDate = errors.New("report has no date")

// ErrReportClosed indicates an append to a report that has already been
// rendered.
var ErrReportClosed = errors.New("report is read-only after rendering")

// TimelineEntry is one prior-day summary carried forward for continuity.
type TimelineEntry struct {
	Timestamp time.Time
	Summary   string
}

// Report aggregates the events of one logical day. It is append-only while
// the day is active and becomes read-only once rendered.
type Report struct {
	mu         sync.Mutex
	date       time.Time
	events     []Event
	historical string
	timeline   []TimelineEntry
	rendered   bool
}

func New(date time.Time) *Report {
	return &Report{date: date}
}

func (r *Report) Date() time.Time {
	return r.date
}

// AddEvent appends in submission order. Duplicates are allowed; dedup is
// explicitly not this layer's responsibility.
func (r *Report) AddEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rendered {
		return ErrReportClosed
	}
	r.events = append(r.events, e)
	return nil
}

// Len reports the number of accumulated events.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Events returns a snapshot in insertion order.
func (r *Report) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// SetHistoricalContext sets the free-text context block. Last write wins.
func (r *Report) SetHistoricalContext(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historical = text
}

// SetTimeline stores prior-day summaries for continuity. Only the most
// recent TimelineWindow entries appear at render time.
func (r *Report) SetTimeline(entries []TimelineEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeline = make([]TimelineEntry, len(entries))
	copy(r.timeline, entries)
}

// RenderDocument produces the structured document model. It marks the
// report read-only, so a second call without intervening mutation (which is
// then impossible) yields identical output. The only failure is a missing
// date.
func (r *Report) RenderDocument() (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.date.IsZero() {
		return nil, ErrNoDate
	}
	r.rendered = true

	doc := &Document{
		Title:             fmt.Sprintf("Daily Report — %s", r.date.Format(DayLayout)),
		Date:              r.date,
		HistoricalContext: r.historical,
	}

	timeline := r.timeline
	if len(timeline) > TimelineWindow {
		timeline = timeline[len(timeline)-TimelineWindow:]
	}
	for _, entry := range timeline {
		doc.Timeline = append(doc.Timeline, fmt.Sprintf("[%s] %s", entry.Timestamp.Format("2006-01-02 15:04"), entry.Summary))
	}

	for _, e := range r.events {
		sec := EventSection{
			Summary:      e.Summary,
			Continent:    e.Continent,
			Type:         e.Type,
			Importance:   e.Importance,
			Declarations: e.Declarations,
			Analysis:     excerpt(e.Analysis, DocAnalysisLimit),
		}
		if e.Deaths != nil {
			d := *e.Deaths
			sec.Deaths = &d
		}
		sec.Links = append(sec.Links, e.Links...)
		doc.Events = append(doc.Events, sec)
	}

	return doc, nil
}

// excerpt caps s at limit runes, appending an ellipsis when truncated.
func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
