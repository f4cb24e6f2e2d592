package debate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/focal-ai/focal/internal/domain"
)

// ─── Debate Orchestrator ────────────────────────────────────────────────────

// OrchestratorConfig controls the debate shape.
type OrchestratorConfig struct {
	Rounds     int // rounds per debate (default: 2)
	MaxWorkers int // concurrent persona calls per round (default: 5)
}

// DefaultOrchestratorConfig returns production debate defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Rounds:     2,
		MaxWorkers: 5,
	}
}

// Responder produces one persona turn. *Generator implements it.
type Responder interface {
	Generate(ctx context.Context, p domain.Persona, idea, debateContext string) (Response, error)
}

// Orchestrator runs rounds of persona turns.
type Orchestrator struct {
	gen      Responder
	personas []domain.Persona
	cfg      OrchestratorConfig
}

// NewOrchestrator creates an orchestrator over the full persona panel.
func NewOrchestrator(gen Responder, cfg OrchestratorConfig) *Orchestrator {
	def := DefaultOrchestratorConfig()
	if cfg.Rounds <= 0 {
		cfg.Rounds = def.Rounds
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	return &Orchestrator{gen: gen, personas: domain.AllPersonas(), cfg: cfg}
}

// Rounds returns the configured number of rounds.
func (o *Orchestrator) Rounds() int { return o.cfg.Rounds }

// RunDebate runs rounds (or the configured default when rounds <= 0) and
// returns every turn ordered by round, then panel order.
//
// The first hard failure cancels the persona calls still in flight and is
// returned; fallback responses are not failures.
func (o *Orchestrator) RunDebate(ctx context.Context, idea string, rounds int) ([]domain.DebateTurn, error) {
	if rounds <= 0 {
		rounds = o.cfg.Rounds
	}

	turns := make([]domain.DebateTurn, 0, rounds*len(o.personas))
	debateContext := ""
	for round := 1; round <= rounds; round++ {
		results, err := o.runRound(ctx, idea, debateContext, round)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		turns = append(turns, results...)
		debateContext = RoundContext(round, results)
	}
	return turns, nil
}

func (o *Orchestrator) runRound(ctx context.Context, idea, debateContext string, round int) ([]domain.DebateTurn, error) {
	results := make([]domain.DebateTurn, len(o.personas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxWorkers)
	for i, p := range o.personas {
		i, p := i, p
		g.Go(func() error {
			resp, err := o.gen.Generate(gctx, p, idea, debateContext)
			if err != nil {
				return err
			}
			results[i] = domain.DebateTurn{
				Persona:  p,
				Agent:    p.Name(),
				Round:    round,
				Response: resp.Text,
				Fallback: resp.Fallback,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fallbacks := 0
	for _, r := range results {
		if r.Fallback {
			fallbacks++
		}
	}
	log.Printf("[debate] round %d complete: %d responses, %d fallback", round, len(results), fallbacks)
	return results, nil
}

// RoundContext renders one round's responses as context for the next.
func RoundContext(round int, turns []domain.DebateTurn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d responses:\n", round)
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n\n", t.Agent, t.Response)
	}
	return b.String()
}
