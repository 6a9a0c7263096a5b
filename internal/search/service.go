package search

import (
	"context"
	"log"
)

// primary is the Meilisearch side of the facade.
type primary interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexJobSheet(record Record) error
}

// fallback is the Postgres scan used when the primary is absent,
// unhealthy, or erroring.
type fallback interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}

// Service is the facade that tries Meilisearch first and falls back to
// the Postgres scan.
type Service struct {
	primary  primary
	fallback fallback
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, pglike *PgLike) *Service {
	s := &Service{fallback: pglike}
	if meili != nil {
		s.primary = meili
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: postgres fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexJobSheet indexes a job sheet, fire-and-forget.
func (s *Service) IndexJobSheet(record Record) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.primary.IndexJobSheet(record); err != nil {
			log.Printf("search: index job sheet %d: %v", record.ID, err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
