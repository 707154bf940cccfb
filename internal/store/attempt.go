package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Attempt outcomes.
const (
	OutcomeMatched       = "matched"
	OutcomeRejected      = "rejected"
	OutcomeNoUsers       = "no_users"
	OutcomeCaptureFailed = "capture_failed"
)

// DefaultAttemptLimit is the number of attempts List returns for a non-positive limit.
const DefaultAttemptLimit = 50

// Attempt records one authentication attempt.
type Attempt struct {
	ID         string          `json:"id"`
	UserName   string          `json:"user_name,omitempty"`
	Matched    bool            `json:"matched"`
	Confidence float64         `json:"confidence"`
	Scores     json.RawMessage `json:"scores,omitempty"`
	Outcome    string          `json:"outcome"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AttemptRepository provides access to the authentication history.
type AttemptRepository struct {
	db *sql.DB
}

// Attempts returns the attempt repository for this store.
func (s *Store) Attempts() *AttemptRepository {
	return &AttemptRepository{db: s.db}
}

// Create inserts an attempt. An empty ID is generated.
func (r *AttemptRepository) Create(a *Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	scores := a.Scores
	if scores == nil {
		scores = json.RawMessage("[]")
	}

	var userName sql.NullString
	if a.UserName != "" {
		userName = sql.NullString{String: a.UserName, Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO auth_attempts (id, user_name, matched, confidence, scores, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, userName, a.Matched, a.Confidence, string(scores), a.Outcome, a.CreatedAt,
	)
	return err
}

// List returns the most recent attempts first.
func (r *AttemptRepository) List(limit int) ([]*Attempt, error) {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}

	rows, err := r.db.Query(
		`SELECT id, user_name, matched, confidence, scores, outcome, created_at
		 FROM auth_attempts ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		a := &Attempt{}
		var userName sql.NullString
		var scores string

		err := rows.Scan(&a.ID, &userName, &a.Matched, &a.Confidence, &scores, &a.Outcome, &a.CreatedAt)
		if err != nil {
			return nil, err
		}

		a.UserName = userName.String
		a.Scores = json.RawMessage(scores)
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attempts, nil
}
