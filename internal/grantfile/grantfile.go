// Package grantfile serves grants and organization preferences from a YAML
// file, for running searches without a database.
package grantfile

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/david/grant-matcher/internal/matching"
	"github.com/david/grant-matcher/internal/models"
)

type document struct {
	Grants   []models.Grant                         `yaml:"grants"`
	Profiles map[string]models.UserMatchPreferences `yaml:"profiles"`
}

type Store struct {
	mu       sync.RWMutex
	grants   []models.Grant
	profiles map[uuid.UUID]models.UserMatchPreferences
	now      func() time.Time
}

// Load reads a fixture file. Grants without an id get one derived from
// their title so ids stay stable between runs.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grant file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Store, error) {
	var doc document
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse grant file: %w", err)
	}

	s := &Store{
		profiles: make(map[uuid.UUID]models.UserMatchPreferences, len(doc.Profiles)),
		now:      time.Now,
	}
	for i, g := range doc.Grants {
		if g.Title == "" {
			return nil, fmt.Errorf("grant %d has no title", i)
		}
		if g.ID == uuid.Nil {
			g.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("grant:"+g.Title))
		}
		s.grants = append(s.grants, g)
	}
	for key, p := range doc.Profiles {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("profile key %q is not a user id: %w", key, err)
		}
		s.profiles[id] = p
	}
	return s, nil
}

// SetClock replaces the time source used to decide eligibility.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) ListActiveGrants(_ context.Context, f models.HardFilters) ([]models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := s.now()
	out := []models.Grant{}
	for _, g := range s.grants {
		if g.IsOpen(today) && f.Matches(g) {
			out = append(out, g)
		}
	}
	matching.SortByDeadline(out)
	return out, nil
}

func (s *Store) GetUserPreferences(_ context.Context, userID uuid.UUID) (*models.UserMatchPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	if p.IssueAreas == nil {
		p.IssueAreas = []string{}
	}
	return &p, nil
}

// Grants returns every grant in the file, eligible or not.
func (s *Store) Grants() []models.Grant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Grant(nil), s.grants...)
}

// Profiles returns a copy of the organization profiles keyed by user id.
func (s *Store) Profiles() map[uuid.UUID]models.UserMatchPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]models.UserMatchPreferences, len(s.profiles))
	for id, p := range s.profiles {
		out[id] = p
	}
	return out
}
