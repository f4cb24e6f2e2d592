// Package refine is the paid requirement-refinement pipeline:
// validate, debit, debate, synthesize, persist. Any failure after the
// debit refunds the full cost before the error is returned.
package refine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/focal-ai/focal/internal/app/debate"
	"github.com/focal-ai/focal/internal/app/ledger"
	"github.com/focal-ai/focal/internal/domain"
	"github.com/focal-ai/focal/internal/infra/observability"
)

// Config controls pipeline behavior.
type Config struct {
	Cost   int64 // credits charged per refinement (default: 2)
	Rounds int   // debate rounds; 0 uses the orchestrator default
}

// DefaultConfig returns production pipeline defaults.
func DefaultConfig() Config {
	return Config{Cost: 2, Rounds: 2}
}

const debitDescription = "Requirement generation"

// Debater runs a multi-round debate. *debate.Orchestrator implements it.
type Debater interface {
	RunDebate(ctx context.Context, idea string, rounds int) ([]domain.DebateTurn, error)
}

// Synthesizer turns a debate log into sections. *debate.Aggregator implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, idea string, turns []domain.DebateTurn) (*debate.Synthesis, error)
}

// Request is one refinement request from an authenticated user.
type Request struct {
	Email string
	Idea  string
}

// Result is a completed refinement.
type Result struct {
	IdeaID         string              `json:"idea_id"`
	Sections       domain.Sections     `json:"sections"`
	Document       string              `json:"document"`
	DebateLog      []domain.DebateTurn `json:"debate_log"`
	UpdatedBalance int64               `json:"updated_balance"`
	Fallback       bool                `json:"fallback,omitempty"`
}

// Service runs refinements.
type Service struct {
	ledger *ledger.Ledger
	ideas  domain.IdeaStore
	debate Debater
	synth  Synthesizer
	tracer *observability.Tracer
	cfg    Config
}

// New creates a refine service. tracer may be nil.
func New(l *ledger.Ledger, ideas domain.IdeaStore, d Debater, s Synthesizer, tracer *observability.Tracer, cfg Config) *Service {
	if cfg.Cost <= 0 {
		cfg.Cost = DefaultConfig().Cost
	}
	return &Service{ledger: l, ideas: ideas, debate: d, synth: s, tracer: tracer, cfg: cfg}
}

// Cost returns the credits charged per refinement.
func (s *Service) Cost() int64 { return s.cfg.Cost }

// Refine runs the full pipeline for req.
//
// Validation and insufficient-credit errors are returned before any
// mutation or upstream call. Every later failure is returned after the
// debit has been refunded.
func (s *Service) Refine(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	span := s.tracer.StartSpan(ctx, "refine", map[string]string{"user": req.Email})
	defer func() {
		s.tracer.EndSpan(span, err)
		observability.RefineRequests.WithLabelValues(outcome(err)).Inc()
		observability.RefineDuration.Observe(time.Since(start).Seconds())
	}()

	idea := strings.TrimSpace(req.Idea)
	if idea == "" {
		return nil, domain.ErrEmptyIdea
	}
	if req.Email == "" {
		return nil, domain.ErrUnauthorized
	}

	balance, err := s.ledger.Debit(ctx, req.Email, s.cfg.Cost, debitDescription)
	if err != nil {
		return nil, err
	}

	stage := "debate"
	defer func() {
		if err == nil {
			return
		}
		// The caller may already be gone; the refund must still land.
		if _, rerr := s.ledger.Refund(context.WithoutCancel(ctx), req.Email, s.cfg.Cost, stage); rerr != nil {
			err = errors.Join(err, fmt.Errorf("refund: %w", rerr))
		}
	}()

	var turns []domain.DebateTurn
	if err = s.step(ctx, "debate", func(ctx context.Context) error {
		var derr error
		turns, derr = s.debate.RunDebate(ctx, idea, s.cfg.Rounds)
		return derr
	}); err != nil {
		return nil, err
	}

	stage = "synthesis"
	var syn *debate.Synthesis
	if err = s.step(ctx, "synthesis", func(ctx context.Context) error {
		var serr error
		syn, serr = s.synth.Synthesize(ctx, idea, turns)
		return serr
	}); err != nil {
		return nil, err
	}

	stage = "persistence"
	rec := &domain.Idea{
		Title:       domain.TitleFromText(idea),
		Description: idea,
		UserID:      req.Email,
	}
	if err = s.step(ctx, "persist", func(ctx context.Context) error {
		return s.persist(ctx, rec, turns, syn.Sections)
	}); err != nil {
		return nil, err
	}

	res = &Result{
		IdeaID:         rec.ID,
		Sections:       syn.Sections,
		Document:       syn.Document,
		DebateLog:      turns,
		UpdatedBalance: balance,
		Fallback:       syn.Fallback,
	}
	log.Printf("[refine] %s idea=%s turns=%d fallback=%v in %s",
		req.Email, res.IdeaID, len(turns), res.Fallback, time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (s *Service) step(ctx context.Context, op string, fn func(context.Context) error) error {
	span := s.tracer.StartSpan(ctx, "refine."+op, nil)
	err := fn(ctx)
	s.tracer.EndSpan(span, err)
	if err != nil {
		log.Printf("[refine] %s failed: %v", op, err)
	}
	return err
}

// persist writes the idea, its debate and its requirement. A failure at
// any write is a *domain.PersistenceError.
func (s *Service) persist(ctx context.Context, idea *domain.Idea, turns []domain.DebateTurn, sections domain.Sections) error {
	if err := s.ideas.SaveIdea(ctx, idea); err != nil {
		return &domain.PersistenceError{Op: "save idea", Err: err}
	}
	if err := s.ideas.SaveDebateEntries(ctx, idea.ID, turns); err != nil {
		return &domain.PersistenceError{Op: "save debate", Err: err}
	}
	if _, err := s.ideas.SaveRequirement(ctx, idea.ID, sections); err != nil {
		return &domain.PersistenceError{Op: "save requirement", Err: err}
	}
	return nil
}

func outcome(err error) string {
	var ic *domain.InsufficientCreditsError
	var ue *domain.UpstreamError
	var pe *domain.PersistenceError
	switch {
	case err == nil:
		return "ok"
	case domain.IsValidation(err):
		return "invalid"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &ic):
		return "insufficient"
	case errors.As(err, &ue):
		return "upstream"
	case errors.As(err, &pe):
		return "persistence"
	}
	return "error"
}
