package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/atlasbrief/atlasbrief/internal/report"
)

// PDF renders the structured document model into a portable byte stream.
// Missing optional fields are simply omitted; rendering itself never fails
// on content.
func PDF(doc *report.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 20, 18)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Cover
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 22)
	pdf.MultiCell(0, 10, tr(doc.Title), "", "C", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(0, 6, tr(doc.Date.Format("Monday, 2 January 2006")), "", "C", false)
	pdf.Ln(10)

	if doc.HistoricalContext != "" {
		sectionHeader(pdf, tr, "Historical Context")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(doc.HistoricalContext), "", "L", false)
		pdf.Ln(6)
	}

	if len(doc.Timeline) > 0 {
		sectionHeader(pdf, tr, "Timeline")
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range doc.Timeline {
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
		}
		pdf.Ln(6)
	}

	for i, ev := range doc.Events {
		sectionHeader(pdf, tr, fmt.Sprintf("%d. %s", i+1, ev.Summary))

		pdf.SetFont("Helvetica", "", 10)
		meta := make([]string, 0, 3)
		if ev.Continent != "" {
			meta = append(meta, ev.Continent)
		}
		if ev.Type != "" {
			meta = append(meta, ev.Type)
		}
		meta = append(meta, fmt.Sprintf("importance %d/5", ev.Importance))
		pdf.MultiCell(0, 5, tr(strings.Join(meta, " / ")), "", "L", false)

		if ev.Deaths != nil {
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("Deaths: %d", *ev.Deaths)), "", "L", false)
		}
		if ev.Declarations != "" {
			pdf.MultiCell(0, 5, tr("Declarations: "+ev.Declarations), "", "L", false)
		}
		for _, link := range ev.Links {
			pdf.SetTextColor(0, 0, 180)
			pdf.MultiCell(0, 5, tr(link), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		}
		if ev.Analysis != "" {
			pdf.Ln(2)
			pdf.MultiCell(0, 5, tr(ev.Analysis), "", "L", false)
		}
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionHeader(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.MultiCell(0, 7, tr(title), "", "L", false)
	pdf.Ln(1)
}
