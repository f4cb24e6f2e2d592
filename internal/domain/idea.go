// Package domain holds Focal's business types, errors and the interfaces
// infrastructure implements. It imports no other Focal package.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxTitleLen bounds the stored title derived from the idea text.
	MaxTitleLen = 200
	// DisplayTitleLen bounds the description prefix shown for untitled ideas.
	DisplayTitleLen = 50
)

// ─── Idea Types ─────────────────────────────────────────────────────────────

// Idea is a product idea submitted for refinement.
type Idea struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayTitle returns the title, or a truncated description when the title is empty.
func (i Idea) DisplayTitle() string {
	if strings.TrimSpace(i.Title) != "" {
		return i.Title
	}
	if utf8.RuneCountInString(i.Description) > DisplayTitleLen {
		return truncateRunes(i.Description, DisplayTitleLen) + "..."
	}
	return i.Description
}

// TitleFromText derives a stored title from raw idea text.
func TitleFromText(text string) string {
	return truncateRunes(strings.TrimSpace(text), MaxTitleLen)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ─── Debate Types ───────────────────────────────────────────────────────────

// DebateTurn is one persona's response in one round, as produced by the orchestrator.
type DebateTurn struct {
	Persona  Persona `json:"-"`
	Agent    string  `json:"agent"`
	Round    int     `json:"round"`
	Response string  `json:"response"`
	Fallback bool    `json:"fallback,omitempty"`
}

// DebateEntry is a persisted debate turn.
type DebateEntry struct {
	ID        int64     `json:"id"`
	IdeaID    string    `json:"idea_id"`
	Round     int       `json:"round"`
	AgentName string    `json:"agent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DebateRound groups the entries of a single round.
type DebateRound struct {
	Round   int           `json:"round"`
	Entries []DebateEntry `json:"entries"`
}

// ─── Requirement Types ──────────────────────────────────────────────────────

// Sections is the parsed form of a synthesized requirements document.
type Sections struct {
	RefinedRequirements string `json:"refined_requirements"`
	TradeOffs           string `json:"trade_offs"`
	NextSteps           string `json:"next_steps"`
}

// Requirement is a persisted set of sections for an idea. The newest by
// CreatedAt is authoritative.
type Requirement struct {
	ID     int64  `json:"id"`
	IdeaID string `json:"idea_id"`
	Sections
	CreatedAt time.Time `json:"created_at"`
}

// ─── Query Results ──────────────────────────────────────────────────────────

// HistoryItem is an idea summary with derived fields.
type HistoryItem struct {
	Idea
	DisplayTitle      string       `json:"display_title"`
	DebateCount       int          `json:"debate_count"`
	LatestRequirement *Requirement `json:"latest_requirement,omitempty"`
}

// IdeaDetails is the full view of one idea.
type IdeaDetails struct {
	Idea              Idea          `json:"idea"`
	DebateRounds      []DebateRound `json:"debate_rounds"`
	LatestRequirement *Requirement  `json:"requirement,omitempty"`
}

// GroupByRound splits entries (already ordered by round, timestamp) into rounds.
func GroupByRound(entries []DebateEntry) []DebateRound {
	var rounds []DebateRound
	for _, e := range entries {
		if n := len(rounds); n == 0 || rounds[n-1].Round != e.Round {
			rounds = append(rounds, DebateRound{Round: e.Round})
		}
		last := &rounds[len(rounds)-1]
		last.Entries = append(last.Entries, e)
	}
	return rounds
}
