// Package storage persists evaluation results for later inspection.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ahrav/go-quorum/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS query_history (
	id                TEXT PRIMARY KEY,
	prompt            TEXT NOT NULL,
	winner_provider   TEXT NOT NULL DEFAULT '',
	winner_text       TEXT NOT NULL DEFAULT '',
	final_score       REAL NOT NULL DEFAULT 0,
	explanation       TEXT NOT NULL DEFAULT '',
	evidence_snippets TEXT NOT NULL DEFAULT '[]',
	candidates        TEXT NOT NULL DEFAULT '[]',
	created_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_history_created_at
	ON query_history (created_at DESC);
`

// Record is one persisted evaluation.
type Record struct {
	ID               string                   `json:"id"`
	Prompt           string                   `json:"prompt"`
	WinnerProvider   string                   `json:"winner_provider"`
	WinnerText       string                   `json:"winner_text"`
	FinalScore       float64                  `json:"final_score"`
	Explanation      string                   `json:"explanation"`
	EvidenceSnippets []string                 `json:"evidence_snippets"`
	Candidates       []domain.ScoredCandidate `json:"candidates"`
	CreatedAt        time.Time                `json:"created_at"`
}

// HistoryStore persists evaluation results in SQLite.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistoryStore opens (or creates) the database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// SQLite allows one writer; serializing through a single connection
	// avoids SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// SaveResult persists one evaluation result together with the prompt
// that produced it.
func (s *HistoryStore) SaveResult(ctx context.Context, prompt string, result domain.EvaluationResult) error {
	var (
		winnerProvider string
		winnerText     string
		finalScore     float64
		snippets       = []string{}
	)
	if result.Winner != nil {
		winnerProvider = result.Winner.Response.ProviderName
		winnerText = result.Winner.Response.Text
		finalScore = result.Winner.FinalScore
		if result.Winner.EvidenceSnippets != nil {
			snippets = result.Winner.EvidenceSnippets
		}
	}

	snippetsJSON, err := json.Marshal(snippets)
	if err != nil {
		return fmt.Errorf("encoding evidence snippets: %w", err)
	}

	candidates := result.AllCandidates
	if candidates == nil {
		candidates = []domain.ScoredCandidate{}
	}
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("encoding candidates: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_history
			(id, prompt, winner_provider, winner_text, final_score, explanation, evidence_snippets, candidates, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, prompt, winnerProvider, winnerText, finalScore,
		result.Explainability, string(snippetsJSON), string(candidatesJSON),
		result.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting history record: %w", err)
	}
	return nil
}

// List returns records newest first, with offset and limit for paging.
func (s *HistoryStore) List(ctx context.Context, offset, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prompt, winner_provider, winner_text, final_score, explanation, evidence_snippets, candidates, created_at
		FROM query_history
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var (
			r              Record
			snippetsJSON   string
			candidatesJSON string
		)
		if err := rows.Scan(
			&r.ID, &r.Prompt, &r.WinnerProvider, &r.WinnerText,
			&r.FinalScore, &r.Explanation, &snippetsJSON, &candidatesJSON, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning history record: %w", err)
		}
		if err := json.Unmarshal([]byte(snippetsJSON), &r.EvidenceSnippets); err != nil {
			return nil, fmt.Errorf("decoding evidence snippets: %w", err)
		}
		if err := json.Unmarshal([]byte(candidatesJSON), &r.Candidates); err != nil {
			return nil, fmt.Errorf("decoding candidates: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes a record by ID and reports whether it existed.
func (s *HistoryStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM query_history WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting history record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Close releases the underlying database handle.
func (s *HistoryStore) Close() error { return s.db.Close() }
