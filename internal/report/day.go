package report

import (
	"fmt"
	"time"
)

// DayLayout is the canonical key format for a logical day.
const DayLayout = "2006-01-02"

// Clock maps timestamps to logical report days. Events submitted after the
// daily cutoff roll forward into the next day, so end-of-day processing can
// happen at a human-friendly time instead of exactly at midnight.
type Clock struct {
	CutoffHour   int
	CutoffMinute int
	Loc          *time.Location
}

func NewClock(cutoffHour, cutoffMinute int, loc *time.Location) (Clock, error) {
	if cutoffHour < 0 || cutoffHour > 23 {
		return Clock{}, fmt.Errorf("cutoff hour %d out of range [0,23]", cutoffHour)
	}
	if cutoffMinute < 0 || cutoffMinute > 59 {
		return Clock{}, fmt.Errorf("cutoff minute %d out of range [0,59]", cutoffMinute)
	}
	if loc == nil {
		return Clock{}, fmt.Errorf("location is required")
	}
	return Clock{CutoffHour: cutoffHour, CutoffMinute: cutoffMinute, Loc: loc}, nil
}

// LogicalDay returns the calendar date (midnight in the clock's location)
// that t belongs to. A timestamp exactly at the cutoff stays on the current
// day; anything strictly after it belongs to the next day.
func (c Clock) LogicalDay(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("logical day: zero timestamp")
	}
	if c.Loc == nil {
		return time.Time{}, fmt.Errorf("logical day: clock has no location")
	}

	t = t.In(c.Loc)
	cutoff := time.Date(t.Year(), t.Month(), t.Day(), c.CutoffHour, c.CutoffMinute, 0, 0, c.Loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.Loc)
	if t.After(cutoff) {
		day = day.AddDate(0, 0, 1)
	}
	return day, nil
}

// DayKey formats a logical day for use as a map/store key.
func DayKey(day time.Time) string {
	return day.Format(DayLayout)
}
