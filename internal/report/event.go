package report

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError reports a submission that failed the event invariants.
// Events that fail validation are never added to a report.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// Event is one validated, classified piece of submitted information.
// It is immutable once constructed and belongs to exactly one report.
type Event struct {
	Summary      string
	Continent    string
	Type         string
	Importance   int
	Deaths       *int
	Declarations string
	Links        []string
	Analysis     string
	Timestamp    time.Time
}

// EventParams collects the raw content plus the classifier's output used to
// construct an Event.
type EventParams struct {
	Summary      string
	Continent    string
	Type         string
	Importance   int
	Deaths       *int
	Declarations string
	Links        []string
	Analysis     string
	Timestamp    time.Time
}

// NewEvent validates p and constructs an immutable Event. Only verified
// information is stored: a failing submission yields a *ValidationError and
// no event.
func NewEvent(p EventParams) (Event, error) {
	summary := strings.TrimSpace(p.Summary)
	if summary == "" {
		return Event{}, &ValidationError{Field: "summary", Reason: "is empty"}
	}
	if p.Importance < 1 || p.Importance > 5 {
		return Event{}, &ValidationError{Field: "importance", Reason: fmt.Sprintf("%d out of range [1,5]", p.Importance)}
	}
	if p.Timestamp.IsZero() {
		return Event{}, &ValidationError{Field: "timestamp", Reason: "is zero"}
	}

	links := make([]string, 0, len(p.Links))
	for _, raw := range p.Links {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return Event{}, &ValidationError{Field: "link", Reason: fmt.Sprintf("%q is not a well-formed URL", raw)}
		}
		links = append(links, raw)
	}

	var deaths *int
	if p.Deaths != nil {
		if *p.Deaths < 0 {
			return Event{}, &ValidationError{Field: "deaths", Reason: "is negative"}
		}
		d := *p.Deaths
		deaths = &d
	}

	return Event{
		Summary:      summary,
		Continent:    strings.TrimSpace(p.Continent),
		Type:         strings.TrimSpace(p.Type),
		Importance:   p.Importance,
		Deaths:       deaths,
		Declarations: strings.TrimSpace(p.Declarations),
		Links:        links,
		Analysis:     p.Analysis,
		Timestamp:    p.Timestamp,
	}, nil
}
