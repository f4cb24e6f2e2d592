package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/focal-ai/focal/internal/app/refine"
	"github.com/focal-ai/focal/internal/domain"
)

const (
	maxBodyBytes        = 64 << 10
	defaultHistoryLimit = 10
	defaultTxLimit      = 50
	maxListLimit        = 100
)

// ─── Refine ─────────────────────────────────────────────────────────────────

type refineRequest struct {
	Idea string `json:"idea"`
}

type refineResponse struct {
	IdeaID              string              `json:"idea_id"`
	RefinedRequirements string              `json:"refined_requirements"`
	TradeOffs           string              `json:"trade_offs"`
	NextSteps           string              `json:"next_steps"`
	Document            string              `json:"document"`
	DebateLog           []domain.DebateTurn `json:"debate_log"`
	UpdatedBalance      int64               `json:"updated_balance"`
	Fallback            bool                `json:"fallback,omitempty"`
}

// handleRefine runs the paid refinement pipeline.
// POST /api/refine {"idea": "..."}
func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errValidation, "invalid JSON body")
		return
	}

	u := userFrom(r.Context())
	res, err := s.refine.Refine(r.Context(), refine.Request{Email: u.Email, Idea: req.Idea})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refineResponse{
		IdeaID:              res.IdeaID,
		RefinedRequirements: res.Sections.RefinedRequirements,
		TradeOffs:           res.Sections.TradeOffs,
		NextSteps:           res.Sections.NextSteps,
		Document:            res.Document,
		DebateLog:           res.DebateLog,
		UpdatedBalance:      res.UpdatedBalance,
		Fallback:            res.Fallback,
	})
}

// ─── Ideas ──────────────────────────────────────────────────────────────────

// handleHistory lists idea summaries, newest first.
// GET /api/history?limit=N[&user=scoped]
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	userID := ""
	if r.URL.Query().Get("user") == "scoped" {
		u := userFrom(r.Context())
		if u == nil {
			writeDomainError(w, r, domain.ErrUnauthorized)
			return
		}
		userID = u.Email
	}

	items, err := s.ideas.History(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": items,
		"count":   len(items),
	})
}

// handleIdea returns one idea with its debate grouped by round.
// GET /api/idea/{id}
func (s *Server) handleIdea(w http.ResponseWriter, r *http.Request) {
	details, err := s.ideas.Details(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// ─── Users ──────────────────────────────────────────────────────────────────

// handleMe returns the caller's profile and balance.
// GET /api/users/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.ledger.User(r.Context(), userFrom(r.Context()).Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleTransactions returns the caller's audit trail, newest first.
// GET /api/users/me/transactions?limit=N
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultTxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, errValidation, err.Error())
		return
	}
	u := userFrom(r.Context())
	txs, err := s.ledger.ListTransactions(r.Context(), u.Email, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if txs == nil {
		txs = []domain.CreditTransaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"credits":      u.Credits,
	})
}

// ─── Personas ───────────────────────────────────────────────────────────────

// handlePersonas lists the debate panel.
// GET /api/personas
func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]string, 0, len(domain.AllPersonas()))
	for _, p := range domain.AllPersonas() {
		out = append(out, map[string]string{
			"key":   p.Key(),
			"name":  p.Name(),
			"focus": p.Focus(),
		})
	}
	resp := map[string]interface{}{"personas": out}
	if s.refine != nil {
		resp["refine_cost"] = s.refine.Cost()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}
