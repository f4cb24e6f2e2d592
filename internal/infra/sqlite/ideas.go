package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/focal-ai/focal/internal/domain"
)

// ─── Idea Repository Operations ─────────────────────────────────────────────

const defaultHistoryLimit = 10

// SaveIdea inserts idea, assigning its ID and timestamps.
func (db *DB) SaveIdea(ctx context.Context, idea *domain.Idea) error {
	if idea.ID == "" {
		idea.ID = uuid.NewString()
	}
	ts := now()
	idea.CreatedAt, idea.UpdatedAt = ts, ts
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO ideas (id, title, description, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, idea.ID, idea.Title, idea.Description, idea.UserID, formatTime(ts), formatTime(ts))
	return err
}

// SaveDebateEntries appends one round-tagged row per turn in a single transaction.
func (db *DB) SaveDebateEntries(ctx context.Context, ideaID string, turns []domain.DebateTurn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO debates (idea_id, round, agent_name, message, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range turns {
		if _, err := stmt.ExecContext(ctx, ideaID, t.Round, t.Agent, t.Response, formatTime(now())); err != nil {
			return err
		}
	}
	if err := touchIdea(ctx, tx, ideaID); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveRequirement appends a requirement for ideaID.
func (db *DB) SaveRequirement(ctx context.Context, ideaID string, s domain.Sections) (*domain.Requirement, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ts := now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO requirements (idea_id, refined_requirements, trade_offs, next_steps, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ideaID, s.RefinedRequirements, s.TradeOffs, s.NextSteps, formatTime(ts))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := touchIdea(ctx, tx, ideaID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &domain.Requirement{ID: id, IdeaID: ideaID, Sections: s, CreatedAt: ts}, nil
}

func touchIdea(ctx context.Context, tx *sql.Tx, ideaID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE ideas SET updated_at = ? WHERE id = ?`, formatTime(now()), ideaID)
	return err
}

// History returns ideas newest first with their debate count and latest
// requirement. An empty userID lists every user's ideas.
func (db *DB) History(ctx context.Context, userID string, limit int) ([]domain.HistoryItem, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT i.id, i.title, i.description, i.user_id, i.created_at, i.updated_at,
		       (SELECT COUNT(*) FROM debates d WHERE d.idea_id = i.id),
		       r.id, r.refined_requirements, r.trade_offs, r.next_steps, r.created_at
		FROM ideas i
		LEFT JOIN requirements r ON r.id = (
			SELECT r2.id FROM requirements r2 WHERE r2.idea_id = i.id
			ORDER BY r2.created_at DESC, r2.id DESC LIMIT 1
		)
		WHERE (? = '' OR i.user_id = ?)
		ORDER BY i.created_at DESC, i.rowid DESC
		LIMIT ?
	`, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.HistoryItem
	for rows.Next() {
		var item domain.HistoryItem
		var created, updated string
		var reqID sql.NullInt64
		var refined, trade, next, reqCreated sql.NullString
		if err := rows.Scan(
			&item.ID, &item.Title, &item.Description, &item.UserID, &created, &updated,
			&item.DebateCount,
			&reqID, &refined, &trade, &next, &reqCreated,
		); err != nil {
			return nil, err
		}
		item.CreatedAt = parseTime(created)
		item.UpdatedAt = parseTime(updated)
		item.DisplayTitle = item.Idea.DisplayTitle()
		if reqID.Valid {
			item.LatestRequirement = &domain.Requirement{
				ID:     reqID.Int64,
				IdeaID: item.ID,
				Sections: domain.Sections{
					RefinedRequirements: refined.String,
					TradeOffs:           trade.String,
					NextSteps:           next.String,
				},
				CreatedAt: parseTime(reqCreated.String),
			}
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// Details returns one idea with its debate grouped by round and its latest
// requirement. Returns domain.ErrIdeaNotFound for an unknown ID.
func (db *DB) Details(ctx context.Context, ideaID string) (*domain.IdeaDetails, error) {
	var idea domain.Idea
	var created, updated string
	err := db.db.QueryRowContext(ctx, `
		SELECT id, title, description, user_id, created_at, updated_at FROM ideas WHERE id = ?
	`, ideaID).Scan(&idea.ID, &idea.Title, &idea.Description, &idea.UserID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrIdeaNotFound
	}
	if err != nil {
		return nil, err
	}
	idea.CreatedAt = parseTime(created)
	idea.UpdatedAt = parseTime(updated)

	entries, err := db.DebateEntries(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	req, err := db.LatestRequirement(ctx, ideaID)
	if err != nil {
		return nil, err
	}

	return &domain.IdeaDetails{
		Idea:              idea,
		DebateRounds:      domain.GroupByRound(entries),
		LatestRequirement: req,
	}, nil
}

// DebateEntries returns an idea's debate ordered by (round, timestamp).
func (db *DB) DebateEntries(ctx context.Context, ideaID string) ([]domain.DebateEntry, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, idea_id, round, agent_name, message, timestamp
		FROM debates WHERE idea_id = ?
		ORDER BY round ASC, timestamp ASC, id ASC
	`, ideaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DebateEntry
	for rows.Next() {
		var e domain.DebateEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.IdeaID, &e.Round, &e.AgentName, &e.Message, &ts); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		result = append(result, e)
	}
	return result, rows.Err()
}

// LatestRequirement returns the newest requirement for ideaID, or nil if
// none has been saved.
func (db *DB) LatestRequirement(ctx context.Context, ideaID string) (*domain.Requirement, error) {
	var r domain.Requirement
	var created string
	err := db.db.QueryRowContext(ctx, `
		SELECT id, idea_id, refined_requirements, trade_offs, next_steps, created_at
		FROM requirements WHERE idea_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, ideaID).Scan(&r.ID, &r.IdeaID, &r.RefinedRequirements, &r.TradeOffs, &r.NextSteps, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(created)
	return &r, nil
}
