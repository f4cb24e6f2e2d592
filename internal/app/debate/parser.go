package debate

import (
	"strings"

	"github.com/focal-ai/focal/internal/domain"
)

// ─── Section Parser ─────────────────────────────────────────────────────────

// SectionParser splits a synthesized document into its three sections.
type SectionParser interface {
	Split(doc string) domain.Sections
}

type section int

const (
	sectionNone section = iota
	sectionRequirements
	sectionTradeOffs
	sectionNextSteps
)

// HeaderParser is the line-scanning parser. A trimmed line containing one
// of the section headers (case-insensitive) switches the current section.
// Other non-empty lines are appended to the current section; lines before
// the first header are dropped.
type HeaderParser struct{}

var _ SectionParser = HeaderParser{}

// Split implements SectionParser.
func (HeaderParser) Split(doc string) domain.Sections {
	var req, trade, next strings.Builder
	current := sectionNone

	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if s := headerOf(line); s != sectionNone {
			current = s
			continue
		}
		if line == "" {
			continue
		}
		switch current {
		case sectionRequirements:
			req.WriteString(line + "\n")
		case sectionTradeOffs:
			trade.WriteString(line + "\n")
		case sectionNextSteps:
			next.WriteString(line + "\n")
		}
	}

	return domain.Sections{
		RefinedRequirements: strings.TrimSpace(req.String()),
		TradeOffs:           strings.TrimSpace(trade.String()),
		NextSteps:           strings.TrimSpace(next.String()),
	}
}

func headerOf(line string) section {
	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "REFINED REQUIREMENTS"):
		return sectionRequirements
	case strings.Contains(upper, "TRADE-OFFS"), strings.Contains(upper, "TRADE OFFS"):
		return sectionTradeOffs
	case strings.Contains(upper, "NEXT STEPS"):
		return sectionNextSteps
	}
	return sectionNone
}
