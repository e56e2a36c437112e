// Package search offers cross-entity text search over the CRM
// document: Meilisearch when configured, an in-memory scan otherwise.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

type ResultType string

const (
	ResultClient   ResultType = "client"
	ResultPartner  ResultType = "partner"
	ResultProject  ResultType = "project"
	ResultFollowup ResultType = "followup"
)

type Query struct {
	Text  string
	Type  ResultType
	Limit int
}

type Result struct {
	Type   ResultType `json:"type"`
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Detail string     `json:"detail"`
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// record is one indexable entity, shared by both backends.
type record struct {
	UID    string     `json:"uid"`
	ID     string     `json:"id"`
	Type   ResultType `json:"type"`
	Title  string     `json:"title"`
	Detail string     `json:"detail"`
}

// flatten turns the document into indexable records.
func flatten(doc crm.Document) []record {
	var records []record
	for _, c := range doc.Clients {
		names := make([]string, 0, len(c.Contacts))
		for _, ct := range c.Contacts {
			if ct.Contact != "" {
				names = append(names, ct.Contact)
			}
		}
		records = append(records, record{
			UID:    "client:" + c.ID,
			ID:     c.ID,
			Type:   ResultClient,
			Title:  c.Name,
			Detail: strings.TrimSpace(c.Country + " " + strings.Join(names, " ")),
		})
	}
	for _, p := range doc.Partners {
		names := make([]string, 0, len(p.Contacts))
		for _, ct := range p.Contacts {
			if ct.Contact != "" {
				names = append(names, ct.Contact)
			}
		}
		records = append(records, record{
			UID:    "partner:" + p.ID,
			ID:     p.ID,
			Type:   ResultPartner,
			Title:  p.Name,
			Detail: strings.Join(names, " "),
		})
	}
	for _, p := range doc.Projects {
		records = append(records, record{
			UID:    "project:" + p.ID,
			ID:     p.ID,
			Type:   ResultProject,
			Title:  p.Name,
			Detail: strings.TrimSpace(p.Status + " " + p.ProductID),
		})
	}
	for _, f := range doc.Followups {
		records = append(records, record{
			UID:    "followup:" + f.ID,
			ID:     f.ID,
			Type:   ResultFollowup,
			Title:  f.Action,
			Detail: f.NextDate,
		})
	}
	return records
}

// Memory scans a snapshot of the document with case-insensitive
// substring matching. Always available.
type Memory struct {
	mu      sync.RWMutex
	records []record
}

func NewMemory() *Memory {
	return &Memory{}
}

// Update replaces the snapshot.
func (m *Memory) Update(doc crm.Document) {
	records := flatten(doc)
	m.mu.Lock()
	m.records = records
	m.mu.Unlock()
}

// Search returns matches ordered by title.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := []Result{}
	for _, r := range m.records {
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Title), needle) &&
			!strings.Contains(strings.ToLower(r.Detail), needle) {
			continue
		}
		matched = append(matched, Result{Type: r.Type, ID: r.ID, Title: r.Title, Detail: r.Detail})
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return crm.CompareNames(matched[i].Title, matched[j].Title) < 0
	})

	total := len(matched)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}
