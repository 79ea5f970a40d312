package search

import "log"

// Service tries Meilisearch first and falls back to Postgres.
type Service struct {
	meili    *Meili
	fallback *SQLFallback
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, fallback *SQLFallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search serves from Meilisearch when healthy, Postgres otherwise.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to sql: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: sql fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexTask pushes one task to Meilisearch, fire-and-forget. The database is
// authoritative; a lost index write surfaces as a stale hit at worst.
func (s *Service) IndexTask(task TaskRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTask(task); err != nil {
			log.Printf("search: index task %s: %v", task.ID, err)
		}
	}()
}

// IndexTasks bulk-indexes a synthesized batch, fire-and-forget.
func (s *Service) IndexTasks(tasks []TaskRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(tasks) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexTasks(tasks); err != nil {
			log.Printf("search: index %d tasks: %v", len(tasks), err)
		}
	}()
}

// DeleteTask removes a task from the index, fire-and-forget.
func (s *Service) DeleteTask(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTask(id); err != nil {
			log.Printf("search: delete task %s: %v", id, err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
