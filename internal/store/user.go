package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store errors.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when creating a user whose name is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidProfile is returned for a user whose embedding and
	// appearance lists disagree in length, or whose name is empty.
	ErrInvalidProfile = errors.New("invalid user profile")
)

// User is an enrolled identity. Embeddings, HasGlasses and HasFacialHair
// are parallel lists with one entry per captured sample.
type User struct {
	ID            string
	Name          string
	Embeddings    [][]float64
	HasGlasses    []bool
	HasFacialHair []bool
	CreatedAt     time.Time
	LastUpdated   time.Time
}

// Validate checks the name, that at least one embedding exists and the
// parallel-length invariant.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidProfile)
	}
	if len(u.Embeddings) == 0 {
		return fmt.Errorf("%w: %s has no embeddings", ErrInvalidProfile, u.Name)
	}
	if len(u.Embeddings) != len(u.HasGlasses) || len(u.Embeddings) != len(u.HasFacialHair) {
		return fmt.Errorf("%w: %s has %d embeddings, %d glasses flags, %d facial hair flags",
			ErrInvalidProfile, u.Name, len(u.Embeddings), len(u.HasGlasses), len(u.HasFacialHair))
	}
	return nil
}

// UserRepository provides CRUD operations for users.
type UserRepository struct {
	db *sql.DB
}

// Users returns the user repository for this store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{db: s.db}
}

// Create inserts a user and its embeddings in a single transaction. An empty
// ID is generated; zero timestamps are set to now.
func (r *UserRepository) Create(u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM users WHERE name = ?`, u.Name).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrUserExists, u.Name)
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.LastUpdated.IsZero() {
		u.LastUpdated = now
	}

	_, err = tx.Exec(
		`INSERT INTO users (id, name, created_at, last_updated) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.CreatedAt, u.LastUpdated,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO user_embeddings (user_id, sample_index, encoding, has_glasses, has_facial_hair)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, enc := range u.Embeddings {
		data, err := json.Marshal(enc)
		if err != nil {
			return fmt.Errorf("failed to encode embedding %d: %w", i, err)
		}
		if _, err := stmt.Exec(u.ID, i, string(data), u.HasGlasses[i], u.HasFacialHair[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByName retrieves a user and its embeddings by name.
func (r *UserRepository) GetByName(name string) (*User, error) {
	u := &User{}

	err := r.db.QueryRow(
		`SELECT id, name, created_at, last_updated FROM users WHERE name = ?`,
		name,
	).Scan(&u.ID, &u.Name, &u.CreatedAt, &u.LastUpdated)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	byID := map[string]*User{u.ID: u}
	if err := r.loadEmbeddings(`WHERE user_id = ?`, byID, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// List retrieves all users with their embeddings in enrollment order.
func (r *UserRepository) List() ([]*User, error) {
	rows, err := r.db.Query(
		`SELECT id, name, created_at, last_updated FROM users ORDER BY rowid`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	byID := make(map[string]*User)
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt, &u.LastUpdated); err != nil {
			return nil, err
		}
		users = append(users, u)
		byID[u.ID] = u
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if len(users) == 0 {
		return users, nil
	}
	if err := r.loadEmbeddings("", byID); err != nil {
		return nil, err
	}
	return users, nil
}

// loadEmbeddings fills the embeddings of the given users, in sample order.
func (r *UserRepository) loadEmbeddings(where string, byID map[string]*User, args ...any) error {
	rows, err := r.db.Query(
		`SELECT user_id, encoding, has_glasses, has_facial_hair
		 FROM user_embeddings `+where+`
		 ORDER BY user_id, sample_index`,
		args...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var userID, data string
		var glasses, hair bool
		if err := rows.Scan(&userID, &data, &glasses, &hair); err != nil {
			return err
		}
		u, ok := byID[userID]
		if !ok {
			continue
		}
		var enc []float64
		if err := json.Unmarshal([]byte(data), &enc); err != nil {
			return fmt.Errorf("failed to decode embedding for %s: %w", u.Name, err)
		}
		u.Embeddings = append(u.Embeddings, enc)
		u.HasGlasses = append(u.HasGlasses, glasses)
		u.HasFacialHair = append(u.HasFacialHair, hair)
	}

	return rows.Err()
}

// Delete removes a user and its embeddings by name.
func (r *UserRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM users WHERE name = ?`, name)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Count returns the number of enrolled users.
func (r *UserRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
