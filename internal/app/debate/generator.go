// Package debate runs the multi-persona debate over a product idea and
// synthesizes the result into a sectioned requirements document.
//
// A debate is a sequence of rounds. Within a round every persona answers
// the same context snapshot, so calls fan out over a bounded worker pool.
// Round n+1 starts only after every persona in round n has answered,
// because its context is built from round n's output.
package debate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/focal-ai/focal/internal/domain"
	"github.com/focal-ai/focal/internal/infra/observability"
)

// ─── Response Generator ─────────────────────────────────────────────────────

// Config controls generation behavior.
type Config struct {
	CallTimeout time.Duration // bound on a single upstream call (default: 60s)
}

// DefaultConfig returns production generation defaults.
func DefaultConfig() Config {
	return Config{CallTimeout: 60 * time.Second}
}

// Response is one persona's answer.
type Response struct {
	Text     string
	Fallback bool // true when Text was computed locally
}

// Generator asks the upstream service for one persona's perspective.
type Generator struct {
	llm domain.TextGenerator
	cfg Config
}

// NewGenerator creates a generator over llm.
func NewGenerator(llm domain.TextGenerator, cfg Config) *Generator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Generator{llm: llm, cfg: cfg}
}

// Generate returns persona's view of idea given the accumulated context.
//
// A rate-limited or timed-out call yields Fallback text for this persona
// only. Any other upstream failure is returned as *domain.UpstreamError.
func (g *Generator) Generate(ctx context.Context, p domain.Persona, idea, debateContext string) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	text, err := g.llm.Complete(callCtx, p.SystemPrompt(), PersonaPrompt(p, idea, debateContext))
	observability.PersonaLatency.WithLabelValues(p.Key()).Observe(time.Since(start).Seconds())

	if err == nil {
		observability.PersonaCalls.WithLabelValues(p.Key(), "ok").Inc()
		return Response{Text: text}, nil
	}

	reason := ""
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		reason = "rate_limited"
	case ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
		reason = "timeout"
	}
	if reason != "" {
		observability.PersonaCalls.WithLabelValues(p.Key(), "fallback").Inc()
		observability.Fallbacks.WithLabelValues(reason).Inc()
		log.Printf("[debate] %s: %s, using fallback text", p.Name(), reason)
		return Response{Text: Fallback(p, idea), Fallback: true}, nil
	}

	observability.PersonaCalls.WithLabelValues(p.Key(), "error").Inc()
	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return Response{}, err
	}
	return Response{}, &domain.UpstreamError{Op: "generate " + p.Key(), Err: err}
}

// PersonaPrompt builds the user prompt for one persona turn.
func PersonaPrompt(p domain.Persona, idea, debateContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product Idea: %s\n\n", idea)
	fmt.Fprintf(&b, "Context from previous discussion: %s\n\n", debateContext)
	fmt.Fprintf(&b, "As a %s, provide your perspective on this product idea. Focus on %s.\n\n", p.Name(), p.Focus())
	b.WriteString("Provide a concise but thoughtful response (2-3 paragraphs) that includes:\n")
	b.WriteString("1. Your initial thoughts on the idea\n")
	b.WriteString("2. Key considerations from your perspective\n")
	b.WriteString("3. Potential challenges or opportunities\n")
	b.WriteString("4. Suggestions for improvement\n\n")
	b.WriteString("Be specific and actionable in your feedback.")
	return b.String()
}

// ─── Fallback Text ──────────────────────────────────────────────────────────

const fallbackIdeaLen = 100

// Fallback is the locally computed response used when the upstream
// service cannot answer. It depends only on its arguments.
func Fallback(p domain.Persona, idea string) string {
	subject := strings.Join(strings.Fields(idea), " ")
	if utf8.RuneCountInString(subject) > fallbackIdeaLen {
		subject = string([]rune(subject)[:fallbackIdeaLen]) + "..."
	}
	return fmt.Sprintf(
		"As the %s, I see potential in \"%s\". My review centers on %s. "+
			"Before committing, the team should validate the core assumptions behind this idea "+
			"with a small experiment and confirm it holds up from the %s point of view. "+
			"A detailed assessment will follow once the generation service is available again.",
		p.Name(), subject, p.Focus(), strings.ToLower(p.Name()))
}
