package search

import (
	"context"
	"database/sql"
	"fmt"
)

// PgLike is the Postgres fallback: a straight ILIKE scan over the
// identifier columns. Job sheet numbers and team codes are short
// structured strings, so pattern matching is all the fallback needs.
type PgLike struct {
	db *sql.DB
}

func NewPgLike(db *sql.DB) *PgLike {
	return &PgLike{db: db}
}

func (p *PgLike) Search(ctx context.Context, q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, jobsheetno, contractno, teamno, siteforeman, date, status
		FROM jobsheets
		WHERE ($1 = '' OR jobsheetno ILIKE '%' || $1 || '%'
			OR contractno ILIKE '%' || $1 || '%'
			OR siteforeman ILIKE '%' || $1 || '%'
			OR teamno ILIKE '%' || $1 || '%')
		AND ($2 = '' OR status = $2)
		ORDER BY id DESC
		LIMIT $3`

	rows, err := p.db.QueryContext(ctx, query, q.Text, q.Status, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("search jobsheets: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.JobSheetNo, &r.ContractNo, &r.TeamNo, &r.SiteForeman, &r.Date, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, len(results), rows.Err()
}
