package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

// profileJSON is the portable profile format, keyed by user name.
type profileJSON struct {
	Embeddings    [][]float64 `json:"embeddings"`
	HasGlasses    []bool      `json:"has_glasses"`
	HasFacialHair []bool      `json:"has_facial_hair"`
	LastUpdated   time.Time   `json:"last_updated"`
}

// ImportReport summarizes an import.
type ImportReport struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// ExportJSON writes every user as {name: {embeddings, has_glasses,
// has_facial_hair, last_updated}}.
func (s *Store) ExportJSON(w io.Writer) error {
	users, err := s.Users().List()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	out := make(map[string]profileJSON, len(users))
	for _, u := range users {
		out[u.Name] = profileJSON{
			Embeddings:    nonNil(u.Embeddings),
			HasGlasses:    nonNil(u.HasGlasses),
			HasFacialHair: nonNil(u.HasFacialHair),
			LastUpdated:   u.LastUpdated,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ImportJSON reads profiles written by ExportJSON. Users whose name already
// exists are skipped. A malformed profile aborts the import before anything
// is written.
func (s *Store) ImportJSON(r io.Reader) (*ImportReport, error) {
	var in map[string]profileJSON
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}

	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)

	users := make([]*User, 0, len(names))
	for _, name := range names {
		p := in[name]
		u := &User{
			Name:          name,
			Embeddings:    p.Embeddings,
			HasGlasses:    p.HasGlasses,
			HasFacialHair: p.HasFacialHair,
			LastUpdated:   p.LastUpdated,
		}
		if err := u.Validate(); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	report := &ImportReport{}
	for _, u := range users {
		err := s.Users().Create(u)
		if errors.Is(err, ErrUserExists) {
			report.Skipped = append(report.Skipped, u.Name)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to import %s: %w", u.Name, err)
		}
		report.Imported = append(report.Imported, u.Name)
	}
	return report, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
