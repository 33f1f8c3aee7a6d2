package report

import "time"

// Document is the structured report model handed to a renderer. Section
// order is contractual: cover, historical context, trailing timeline, then
// one section per event in insertion order.
type Document struct {
	Title             string
	Date              time.Time
	HistoricalContext string
	Timeline          []string
	Events            []EventSection
}

// EventSection is one rendered event. Optional fields are left empty/nil
// and omitted by renderers; Analysis is already capped at DocAnalysisLimit.
type EventSection struct {
	Summary      string
	Continent    string
	Type         string
	Importance   int
	Deaths       *int
	Declarations string
	Links        []string
	Analysis     string
}
