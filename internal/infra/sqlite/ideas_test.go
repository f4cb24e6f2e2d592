package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/focal-ai/focal/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Idea Repository Tests
// ═══════════════════════════════════════════════════════════════════════════

func saveTestIdea(t *testing.T, db *DB, userID, text string) *domain.Idea {
	t.Helper()
	idea := &domain.Idea{Title: domain.TitleFromText(text), Description: text, UserID: userID}
	if err := db.SaveIdea(context.Background(), idea); err != nil {
		t.Fatalf("SaveIdea() error: %v", err)
	}
	return idea
}

func testTurns(rounds int) []domain.DebateTurn {
	var turns []domain.DebateTurn
	for r := 1; r <= rounds; r++ {
		for _, p := range domain.AllPersonas() {
			turns = append(turns, domain.DebateTurn{
				Persona:  p,
				Agent:    p.Name(),
				Round:    r,
				Response: fmt.Sprintf("%s round %d", p.Name(), r),
			})
		}
	}
	return turns
}

func TestSaveIdea_AssignsIDAndTimestamps(t *testing.T) {
	db := newTestDB(t)
	idea := saveTestIdea(t, db, "ada@example.com", "A dog walking marketplace")

	if idea.ID == "" {
		t.Error("ID should be assigned")
	}
	if idea.CreatedAt.IsZero() || !idea.CreatedAt.Equal(idea.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", idea.CreatedAt, idea.UpdatedAt)
	}
}

func TestDetails_GroupsRoundsAndLatestRequirement(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	idea := saveTestIdea(t, db, "ada@example.com", "A dog walking marketplace")

	if err := db.SaveDebateEntries(ctx, idea.ID, testTurns(2)); err != nil {
		t.Fatalf("SaveDebateEntries() error: %v", err)
	}
	if _, err := db.SaveRequirement(ctx, idea.ID, domain.Sections{RefinedRequirements: "old"}); err != nil {
		t.Fatalf("SaveRequirement() error: %v", err)
	}
	if _, err := db.SaveRequirement(ctx, idea.ID, domain.Sections{RefinedRequirements: "new", TradeOffs: "t", NextSteps: "n"}); err != nil {
		t.Fatalf("SaveRequirement() error: %v", err)
	}

	d, err := db.Details(ctx, idea.ID)
	if err != nil {
		t.Fatalf("Details() error: %v", err)
	}
	if d.Idea.Description != "A dog walking marketplace" {
		t.Errorf("Description = %q", d.Idea.Description)
	}
	if len(d.DebateRounds) != 2 {
		t.Fatalf("rounds = %d, want 2", len(d.DebateRounds))
	}
	for i, r := range d.DebateRounds {
		if r.Round != i+1 {
			t.Errorf("round[%d].Round = %d", i, r.Round)
		}
		if len(r.Entries) != 5 {
			t.Errorf("round %d has %d entries, want 5", r.Round, len(r.Entries))
		}
	}
	if d.LatestRequirement == nil || d.LatestRequirement.RefinedRequirements != "new" {
		t.Errorf("LatestRequirement = %+v, want the newest", d.LatestRequirement)
	}
	if !d.Idea.UpdatedAt.After(d.Idea.CreatedAt) {
		t.Error("UpdatedAt should advance after appends")
	}
}

func TestDetails_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Details(context.Background(), "missing")
	if !errors.Is(err, domain.ErrIdeaNotFound) {
		t.Errorf("Details(missing) error = %v, want ErrIdeaNotFound", err)
	}
}

func TestDetails_NoRequirement(t *testing.T) {
	db := newTestDB(t)
	idea := saveTestIdea(t, db, "", "orphan idea")
	d, err := db.Details(context.Background(), idea.ID)
	if err != nil {
		t.Fatalf("Details() error: %v", err)
	}
	if d.LatestRequirement != nil {
		t.Error("LatestRequirement should be nil")
	}
	if len(d.DebateRounds) != 0 {
		t.Errorf("rounds = %d, want 0", len(d.DebateRounds))
	}
}

func TestDebateEntries_Ordered(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	idea := saveTestIdea(t, db, "", "ordering")

	// Save round 2 before round 1 to prove retrieval order is by round.
	turns := testTurns(2)
	if err := db.SaveDebateEntries(ctx, idea.ID, turns[5:]); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveDebateEntries(ctx, idea.ID, turns[:5]); err != nil {
		t.Fatal(err)
	}

	entries, err := db.DebateEntries(ctx, idea.ID)
	if err != nil {
		t.Fatalf("DebateEntries() error: %v", err)
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.Round < prev.Round || (cur.Round == prev.Round && cur.Timestamp.Before(prev.Timestamp)) {
			t.Fatalf("entries out of order at %d: %+v then %+v", i, prev, cur)
		}
	}
}

func TestHistory_PaginationAndDebateCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		idea := saveTestIdea(t, db, "ada@example.com", fmt.Sprintf("idea %d", i))
		if err := db.SaveDebateEntries(ctx, idea.ID, testTurns(i%2+1)); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, idea.ID)
	}
	saveTestIdea(t, db, "bob@example.com", "someone else's idea")

	items, err := db.History(ctx, "ada@example.com", 2)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].ID != ids[4] || items[1].ID != ids[3] {
		t.Errorf("History ids = [%s, %s], want the two newest", items[0].ID, items[1].ID)
	}
	if items[0].DebateCount != 5 {
		t.Errorf("items[0].DebateCount = %d, want 5", items[0].DebateCount)
	}
	if items[1].DebateCount != 10 {
		t.Errorf("items[1].DebateCount = %d, want 10", items[1].DebateCount)
	}
}

func TestHistory_UnscopedAndDisplayTitle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	long := strings.Repeat("word ", 20)

	untitled := &domain.Idea{Description: long, UserID: "ada@example.com"}
	if err := db.SaveIdea(ctx, untitled); err != nil {
		t.Fatal(err)
	}
	saveTestIdea(t, db, "bob@example.com", "titled")

	items, err := db.History(ctx, "", 0)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[1].DisplayTitle != long[:50]+"..." {
		t.Errorf("DisplayTitle = %q", items[1].DisplayTitle)
	}
	if items[0].LatestRequirement != nil {
		t.Error("LatestRequirement should be nil without requirements")
	}
}

func TestHistory_LatestRequirement(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	idea := saveTestIdea(t, db, "ada@example.com", "idea")
	db.SaveRequirement(ctx, idea.ID, domain.Sections{NextSteps: "first"})
	db.SaveRequirement(ctx, idea.ID, domain.Sections{NextSteps: "second"})

	items, err := db.History(ctx, "ada@example.com", 10)
	if err != nil {
		t.Fatal(err)
	}
	if items[0].LatestRequirement == nil || items[0].LatestRequirement.NextSteps != "second" {
		t.Errorf("LatestRequirement = %+v, want second", items[0].LatestRequirement)
	}
}
