package search

import (
	"log"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

// Service is the facade that tries Meilisearch first and falls back to
// the in-memory scan.
type Service struct {
	meili  *Meili
	memory *Memory
}

// NewService creates a search service. meili may be nil when
// Meilisearch is not configured.
func NewService(meili *Meili, memory *Memory) *Service {
	return &Service{meili: meili, memory: memory}
}

// Update refreshes both backends after a document change. The
// Meilisearch reindex is fire-and-forget.
func (s *Service) Update(doc crm.Document) {
	s.memory.Update(doc)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	records := flatten(doc)
	go func() {
		if err := s.meili.Reindex(records); err != nil {
			log.Printf("search: reindex: %v", err)
		}
	}()
}

// Search tries Meilisearch if healthy, otherwise scans in memory.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to memory scan: %v", err)
	}

	results, total, err := s.memory.Search(q)
	if err != nil {
		log.Printf("search: memory scan error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
