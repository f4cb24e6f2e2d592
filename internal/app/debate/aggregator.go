package debate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/focal-ai/focal/internal/domain"
	"github.com/focal-ai/focal/internal/infra/observability"
)

// ─── Aggregator ─────────────────────────────────────────────────────────────

const synthesisSystemPrompt = "You are an expert product strategist who can synthesize multiple " +
	"stakeholder perspectives into clear, actionable requirements."

// Aggregator turns a debate log into a requirements document.
type Aggregator struct {
	llm    domain.TextGenerator
	parser SectionParser
	cfg    Config
}

// NewAggregator creates an aggregator. A nil parser selects HeaderParser.
func NewAggregator(llm domain.TextGenerator, parser SectionParser, cfg Config) *Aggregator {
	if parser == nil {
		parser = HeaderParser{}
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Aggregator{llm: llm, parser: parser, cfg: cfg}
}

// Synthesis is a synthesized document and its parsed sections.
type Synthesis struct {
	Document string
	Sections domain.Sections
	Fallback bool
}

// Synthesize asks the upstream service for a requirements document and
// splits it. Rate limiting or a timeout falls back to FallbackDocument.
func (a *Aggregator) Synthesize(ctx context.Context, idea string, turns []domain.DebateTurn) (*Synthesis, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	doc, err := a.llm.Complete(callCtx, synthesisSystemPrompt, SynthesisPrompt(idea, turns))
	if err != nil {
		reason := ""
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			reason = "rate_limited"
		case ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
			reason = "timeout"
		}
		if reason == "" {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var ue *domain.UpstreamError
			if errors.As(err, &ue) {
				return nil, err
			}
			return nil, &domain.UpstreamError{Op: "synthesize", Err: err}
		}
		observability.Fallbacks.WithLabelValues("synthesis_" + reason).Inc()
		log.Printf("[debate] synthesis %s, using fallback document", reason)
		doc = FallbackDocument(idea, turns)
		return &Synthesis{Document: doc, Sections: a.parser.Split(doc), Fallback: true}, nil
	}

	return &Synthesis{Document: doc, Sections: a.parser.Split(doc)}, nil
}

// SynthesisPrompt builds the aggregation prompt over the full debate log.
func SynthesisPrompt(idea string, turns []domain.DebateTurn) string {
	summary := make([]string, len(turns))
	for i, t := range turns {
		summary[i] = fmt.Sprintf("%s (Round %d): %s", t.Agent, t.Round, t.Response)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Product Idea: %s\n\n", idea)
	fmt.Fprintf(&b, "Stakeholder Debate Summary:\n%s\n\n", strings.Join(summary, "\n\n"))
	b.WriteString("Based on this multi-stakeholder debate, create a comprehensive requirements document with three sections:\n\n")
	b.WriteString("1. REFINED REQUIREMENTS:\n")
	b.WriteString("- List 5-8 key requirements that address the main concerns and opportunities identified\n")
	b.WriteString("- Be specific and actionable\n")
	b.WriteString("- Prioritize by importance\n\n")
	b.WriteString("2. TRADE-OFFS:\n")
	b.WriteString("- Identify 3-5 key trade-offs that need to be considered\n")
	b.WriteString("- Explain the implications of each choice\n")
	b.WriteString("- Suggest how to balance competing priorities\n\n")
	b.WriteString("3. NEXT STEPS:\n")
	b.WriteString("- Provide 3-5 concrete next steps to move forward\n")
	b.WriteString("- Include timeline suggestions\n")
	b.WriteString("- Identify key decisions that need to be made\n\n")
	b.WriteString("Format your response clearly with these three sections.")
	return b.String()
}

// FallbackDocument builds a requirements document locally from the final
// round of turns. It carries the three headers so any SectionParser that
// understands them can split it.
func FallbackDocument(idea string, turns []domain.DebateTurn) string {
	last := finalRound(turns)

	var b strings.Builder
	b.WriteString("1. REFINED REQUIREMENTS:\n")
	if s := firstSentence(idea); s != "" && headerOf(s) == sectionNone {
		fmt.Fprintf(&b, "- Deliver the core of the idea: %s\n", s)
	}
	for _, t := range last {
		if s := firstSentence(t.Response); s != "" && headerOf(s) == sectionNone {
			fmt.Fprintf(&b, "- %s: %s\n", t.Agent, s)
		} else {
			fmt.Fprintf(&b, "- Address the %s perspective\n", t.Agent)
		}
	}

	b.WriteString("\n2. TRADE-OFFS:\n")
	for i := 0; i+1 < len(last); i += 2 {
		fmt.Fprintf(&b, "- %s priorities versus %s priorities\n", last[i].Agent, last[i+1].Agent)
	}
	b.WriteString("- Scope of the first release versus time to market\n")

	b.WriteString("\n3. NEXT STEPS:\n")
	b.WriteString("- Validate the riskiest assumption with a small experiment\n")
	b.WriteString("- Review each stakeholder perspective in the debate log\n")
	b.WriteString("- Re-run the refinement when the generation service is available\n")
	return b.String()
}

func finalRound(turns []domain.DebateTurn) []domain.DebateTurn {
	if len(turns) == 0 {
		return nil
	}
	round := turns[len(turns)-1].Round
	start := len(turns)
	for start > 0 && turns[start-1].Round == round {
		start--
	}
	return turns[start:]
}

const maxSentenceLen = 200

func firstSentence(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		s = s[:i+1]
	}
	if r := []rune(s); len(r) > maxSentenceLen {
		s = string(r[:maxSentenceLen]) + "..."
	}
	return s
}
