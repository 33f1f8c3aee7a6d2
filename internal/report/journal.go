package report

import (
	"sync"
	"time"
)

// Journal owns the active reports, one per logical day, created lazily on
// the first event of a new day. Days are independent partitions; appends
// within one report are serialized by the report itself.
type Journal struct {
	clock Clock

	mu   sync.Mutex
	days map[string]*Report
}

func NewJournal(clock Clock) *Journal {
	return &Journal{
		clock: clock,
		days:  make(map[string]*Report),
	}
}

func (j *Journal) Clock() Clock {
	return j.clock
}

// For returns the report for the logical day of t, creating it if needed.
func (j *Journal) For(t time.Time) (*Report, error) {
	day, err := j.clock.LogicalDay(t)
	if err != nil {
		return nil, err
	}
	return j.Day(day), nil
}

// Day returns the report for an explicit logical day, creating it if needed.
func (j *Journal) Day(day time.Time) *Report {
	key := DayKey(day)
	j.mu.Lock()
	defer j.mu.Unlock()
	r, ok := j.days[key]
	if !ok {
		r = New(day)
		j.days[key] = r
	}
	return r
}

// Peek returns the report for a day without creating one.
func (j *Journal) Peek(day time.Time) *Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.days[DayKey(day)]
}

// Close drops a rendered day from the journal. The persisted artifacts in
// the store remain the durable copy.
func (j *Journal) Close(day time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.days, DayKey(day))
}

// Days lists the keys of currently open days.
func (j *Journal) Days() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	keys := make([]string, 0, len(j.days))
	for k := range j.days {
		keys = append(keys, k)
	}
	return keys
}
