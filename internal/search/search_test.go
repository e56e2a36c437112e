package search

import (
	"testing"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

func indexedMemory() *Memory {
	doc := crm.EmptyDocument()
	doc.Clients = []crm.Client{
		{ID: "client-1", Name: "Acme Extrusions", Country: "US", Contacts: []crm.Contact{{Contact: "Jo"}}},
		{ID: "client-2", Name: "Vega Metals", Country: "DE", Contacts: []crm.Contact{{Contact: "Sam"}}},
	}
	doc.Partners = []crm.Partner{
		{ID: "partner-1", Name: "Orion Tooling", Contacts: []crm.Contact{{Contact: "Lee"}}},
	}
	doc.Projects = []crm.Project{
		{ID: "project-1", Name: "Acme line upgrade", Status: "open"},
	}
	doc.Followups = []crm.Followup{
		{ID: "followup-1", ClientID: "client-1", NextDate: "2026-03-01", Action: "send offer to Acme"},
	}
	m := NewMemory()
	m.Update(doc)
	return m
}

func TestMemorySearchMatchesAcrossEntities(t *testing.T) {
	m := indexedMemory()
	results, total, err := m.Search(Query{Text: "acme"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 matches, got %d: %+v", total, results)
	}
	types := map[ResultType]bool{}
	for _, r := range results {
		types[r.Type] = true
	}
	for _, want := range []ResultType{ResultClient, ResultProject, ResultFollowup} {
		if !types[want] {
			t.Errorf("missing %s result: %+v", want, results)
		}
	}
}

func TestMemorySearchTypeFilter(t *testing.T) {
	m := indexedMemory()
	results, total, err := m.Search(Query{Text: "acme", Type: ResultClient})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 1 || results[0].ID != "client-1" {
		t.Fatalf("unexpected filtered results: %+v", results)
	}
}

func TestMemorySearchMatchesContactDetail(t *testing.T) {
	m := indexedMemory()
	results, _, err := m.Search(Query{Text: "lee"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Type != ResultPartner {
		t.Fatalf("expected the partner via its contact, got %+v", results)
	}
}

func TestMemorySearchLimit(t *testing.T) {
	m := indexedMemory()
	results, total, err := m.Search(Query{Text: "", Limit: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(results) != 2 {
		t.Fatalf("expected limit applied, got %d results", len(results))
	}
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	svc := NewService(nil, indexedMemory())
	resp := svc.Search(Query{Text: "vega"})
	if resp.Total != 1 || resp.Results[0].ID != "client-2" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Results == nil {
		t.Fatal("results must never be nil")
	}
}
