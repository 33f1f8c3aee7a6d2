package report

import (
	"fmt"
	"strings"
)

// ChatSummary renders a short markdown-flavored block for one event,
// suitable for display in the conversational surface. Independent of the
// document renderer but shares the chat analysis cap.
func ChatSummary(e Event) string {
	var sb strings.Builder

	sb.WriteString("**")
	sb.WriteString(e.Summary)
	sb.WriteString("**\n")

	meta := make([]string, 0, 3)
	if e.Continent != "" {
		meta = append(meta, e.Continent)
	}
	if e.Type != "" {
		meta = append(meta, e.Type)
	}
	meta = append(meta, fmt.Sprintf("importance %d/5", e.Importance))
	sb.WriteString(strings.Join(meta, " · "))
	sb.WriteString("\n")

	if e.Deaths != nil {
		fmt.Fprintf(&sb, "Deaths: %d\n", *e.Deaths)
	}
	if e.Declarations != "" {
		fmt.Fprintf(&sb, "Declarations: %s\n", e.Declarations)
	}
	for _, link := range e.Links {
		fmt.Fprintf(&sb, "- %s\n", link)
	}
	if e.Analysis != "" {
		sb.WriteString("\n")
		sb.WriteString(excerpt(e.Analysis, ChatAnalysisLimit))
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}
