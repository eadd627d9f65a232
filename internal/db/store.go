package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/grant-matcher/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const grantCols = `id, title, description, issue_area, scope,
	funding_min::float8, funding_max::float8, deadline, eligibility,
	funder_name, funder_url, source_url, is_active, created_at, updated_at`

func scanGrant(scan func(dest ...any) error) (models.Grant, error) {
	var g models.Grant
	err := scan(
		&g.ID, &g.Title, &g.Description, &g.IssueArea, &g.Scope,
		&g.FundingMin, &g.FundingMax, &g.Deadline, &g.Eligibility,
		&g.FunderName, &g.FunderURL, &g.SourceURL, &g.IsActive, &g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

// buildActiveGrantsQuery renders the candidate query for the filters.
func buildActiveGrantsQuery(f models.HardFilters) (string, []any) {
	where := "WHERE is_active = true AND (deadline IS NULL OR deadline >= CURRENT_DATE)"
	var args []any
	argIdx := 1

	if v := strings.TrimSpace(f.IssueArea); v != "" {
		where += fmt.Sprintf(` AND issue_area ILIKE '%%' || $%d || '%%' ESCAPE '\'`, argIdx)
		args = append(args, escapeLike(v))
		argIdx++
	}
	if v := strings.TrimSpace(f.Scope); v != "" {
		where += fmt.Sprintf(` AND scope ILIKE '%%' || $%d || '%%' ESCAPE '\'`, argIdx)
		args = append(args, escapeLike(v))
		argIdx++
	}
	// Range overlap; a missing bound on the grant never excludes it.
	if f.FundingMin != nil {
		where += fmt.Sprintf(" AND (funding_max IS NULL OR funding_max >= $%d)", argIdx)
		args = append(args, *f.FundingMin)
		argIdx++
	}
	if f.FundingMax != nil {
		where += fmt.Sprintf(" AND (funding_min IS NULL OR funding_min <= $%d)", argIdx)
		args = append(args, *f.FundingMax)
		argIdx++
	}

	query := "SELECT " + grantCols + " FROM grants " + where +
		" ORDER BY deadline ASC NULLS LAST, created_at ASC, id ASC"
	return query, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListActiveGrants returns eligible grants matching the filters, earliest
// deadline first and rolling grants last.
func (s *Store) ListActiveGrants(ctx context.Context, f models.HardFilters) ([]models.Grant, error) {
	query, args := buildActiveGrantsQuery(f)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	grants := []models.Grant{}
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grants: %w", err)
	}
	return grants, nil
}

// GetUserPreferences returns nil, nil when the user has no profile row.
func (s *Store) GetUserPreferences(ctx context.Context, userID uuid.UUID) (*models.UserMatchPreferences, error) {
	var p models.UserMatchPreferences
	err := s.pool.QueryRow(ctx, `
		SELECT issue_areas, preferred_scope, funding_min::float8, funding_max::float8
		FROM organization_profiles WHERE user_id = $1`, userID,
	).Scan(&p.IssueAreas, &p.PreferredScope, &p.FundingMin, &p.FundingMax)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if p.IssueAreas == nil {
		p.IssueAreas = []string{}
	}
	return &p, nil
}

// UpsertGrant inserts or replaces a grant by id.
func (s *Store) UpsertGrant(ctx context.Context, g models.Grant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Deadline != nil {
		d := models.DeadlineDate(*g.Deadline)
		g.Deadline = &d
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO grants (id, title, description, issue_area, scope, funding_min, funding_max,
			deadline, eligibility, funder_name, funder_url, source_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description,
			issue_area = EXCLUDED.issue_area, scope = EXCLUDED.scope,
			funding_min = EXCLUDED.funding_min, funding_max = EXCLUDED.funding_max,
			deadline = EXCLUDED.deadline, eligibility = EXCLUDED.eligibility,
			funder_name = EXCLUDED.funder_name, funder_url = EXCLUDED.funder_url,
			source_url = EXCLUDED.source_url, is_active = EXCLUDED.is_active,
			updated_at = NOW()`,
		g.ID, g.Title, g.Description, g.IssueArea, g.Scope, g.FundingMin, g.FundingMax,
		g.Deadline, g.Eligibility, g.FunderName, g.FunderURL, g.SourceURL, g.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grant %s: %w", g.ID, err)
	}
	return nil
}

// UpsertPreferences stores the match preferences of a user's profile.
func (s *Store) UpsertPreferences(ctx context.Context, userID uuid.UUID, p models.UserMatchPreferences) error {
	areas := p.IssueAreas
	if areas == nil {
		areas = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organization_profiles (user_id, issue_areas, preferred_scope, funding_min, funding_max)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			issue_areas = EXCLUDED.issue_areas, preferred_scope = EXCLUDED.preferred_scope,
			funding_min = EXCLUDED.funding_min, funding_max = EXCLUDED.funding_max,
			updated_at = NOW()`,
		userID, areas, p.PreferredScope, p.FundingMin, p.FundingMax,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences for %s: %w", userID, err)
	}
	return nil
}
