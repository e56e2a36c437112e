package crm

import (
	"encoding/json"
	"strings"
	"testing"
)

func docWithClient() Document {
	doc := EmptyDocument()
	doc.Clients = []Client{{
		ID:   "client-1",
		Name: "Acme",
		Contacts: []Contact{
			{Contact: "Jo", Email: "jo@acme.test", Phone: "1"},
			{Contact: "Sam", Email: "sam@acme.test", Phone: "2"},
		},
	}}
	return doc
}

func TestDeleteClientContactKeepsClientWithRemainingContacts(t *testing.T) {
	doc := docWithClient()
	if err := doc.DeleteClientContact("client-1", 0); err != nil {
		t.Fatalf("DeleteClientContact() error = %v", err)
	}
	if len(doc.Clients) != 1 {
		t.Fatalf("expected client to survive, got %d clients", len(doc.Clients))
	}
	if len(doc.Clients[0].Contacts) != 1 || doc.Clients[0].Contacts[0].Contact != "Sam" {
		t.Fatalf("unexpected contacts after delete: %+v", doc.Clients[0].Contacts)
	}
}

func TestDeleteLastClientContactRemovesClient(t *testing.T) {
	doc := docWithClient()
	if err := doc.DeleteClientContact("client-1", 0); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := doc.DeleteClientContact("client-1", 0); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if len(doc.Clients) != 0 {
		t.Fatalf("expected cascade delete of client, got %+v", doc.Clients)
	}
}

func TestDeletePartnerContactCascades(t *testing.T) {
	doc := EmptyDocument()
	doc.Partners = []Partner{{
		ID:       "partner-1",
		Name:     "Orion",
		Contacts: []Contact{{Contact: "Lee"}},
	}}
	if err := doc.DeletePartnerContact("partner-1", 0); err != nil {
		t.Fatalf("DeletePartnerContact() error = %v", err)
	}
	if len(doc.Partners) != 0 {
		t.Fatalf("expected partner removed, got %+v", doc.Partners)
	}
}

func TestAddClientRejectsDuplicateName(t *testing.T) {
	doc := EmptyDocument()
	if _, err := doc.AddClient("Acme", "US", Contact{Contact: "Jo"}); err != nil {
		t.Fatalf("AddClient() error = %v", err)
	}
	if _, err := doc.AddClient(" ACME ", "UK", Contact{}); err != ErrDuplicateName {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestMergeProductGroupsUnionsDuplicatePartners(t *testing.T) {
	groups := []ProductGroup{
		{PartnerID: "partner-1", Partner: "Orion", Items: []string{"Dies", "Pullers"}},
		{PartnerID: "partner-1", Partner: "Orion", Items: []string{"Pullers", "Saws"}},
		{Partner: "Vega", Items: []string{"Ovens"}},
	}
	merged := MergeProductGroups(groups)
	if len(merged) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(merged), merged)
	}
	var orion *ProductGroup
	for i := range merged {
		if merged[i].PartnerID == "partner-1" {
			orion = &merged[i]
		}
	}
	if orion == nil {
		t.Fatal("merged group for partner-1 missing")
	}
	want := []string{"Dies", "Pullers", "Saws"}
	if len(orion.Items) != len(want) {
		t.Fatalf("unexpected items: %v", orion.Items)
	}
	for i, item := range want {
		if orion.Items[i] != item {
			t.Fatalf("items not deduplicated and sorted: %v", orion.Items)
		}
	}
}

func TestMergeProductGroupsIdempotent(t *testing.T) {
	groups := []ProductGroup{
		{Partner: "Vega", Items: []string{"Ovens", "Dies", "Ovens"}},
		{Partner: "Orion", Items: []string{"Saws"}},
	}
	once := MergeProductGroups(groups)
	twice := MergeProductGroups(once)
	if len(once) != len(twice) {
		t.Fatalf("group count changed: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Partner != twice[i].Partner || len(once[i].Items) != len(twice[i].Items) {
			t.Fatalf("grouping not idempotent: %+v vs %+v", once[i], twice[i])
		}
		for j := range once[i].Items {
			if once[i].Items[j] != twice[i].Items[j] {
				t.Fatalf("items changed on regroup: %v vs %v", once[i].Items, twice[i].Items)
			}
		}
	}
}

func TestAddProductMergesIntoNamedGroup(t *testing.T) {
	doc := EmptyDocument()
	doc.Partners = []Partner{{ID: "partner-1", Name: "Orion", Contacts: []Contact{{Contact: "Lee"}}}}
	// Imported group carries only the partner name.
	doc.Products = []ProductGroup{{Partner: "Orion", Items: []string{"Dies"}}}

	if err := doc.AddProduct("partner-1", "Saws"); err != nil {
		t.Fatalf("AddProduct() error = %v", err)
	}
	if len(doc.Products) != 1 {
		t.Fatalf("expected the named group to absorb the add, got %+v", doc.Products)
	}
	if len(doc.Products[0].Items) != 2 {
		t.Fatalf("unexpected items: %v", doc.Products[0].Items)
	}
}

func TestDeleteLastProductRemovesGroup(t *testing.T) {
	doc := EmptyDocument()
	doc.Products = []ProductGroup{{PartnerID: "partner-1", Partner: "Orion", Items: []string{"Dies"}}}
	if err := doc.DeleteProduct("partner-1", 0); err != nil {
		t.Fatalf("DeleteProduct() error = %v", err)
	}
	if len(doc.Products) != 0 {
		t.Fatalf("expected empty products, got %+v", doc.Products)
	}
}

func TestDeleteProjectCascadesComments(t *testing.T) {
	doc := EmptyDocument()
	doc.Projects = []Project{{ID: "project-1", Name: "Line A"}, {ID: "project-2", Name: "Line B"}}
	doc.ProjectComments = []ProjectComment{
		{ID: "comment-1", ProjectID: "project-1", Type: CommentNote, Text: "kickoff"},
		{ID: "comment-2", ProjectID: "project-2", Type: CommentCall, Text: "quote"},
	}
	if err := doc.DeleteProject("project-1"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if len(doc.Projects) != 1 || doc.Projects[0].ID != "project-2" {
		t.Fatalf("unexpected projects: %+v", doc.Projects)
	}
	if len(doc.ProjectComments) != 1 || doc.ProjectComments[0].ID != "comment-2" {
		t.Fatalf("comments not cascade-deleted: %+v", doc.ProjectComments)
	}
}

func TestDeleteProjectLeavesFollowupsDangling(t *testing.T) {
	doc := EmptyDocument()
	doc.Projects = []Project{{ID: "project-1", Name: "Line A"}}
	doc.Followups = []Followup{{ID: "followup-1", ClientID: "client-1", ProjectID: "project-1", NextDate: "2026-01-01", Action: "call"}}
	if err := doc.DeleteProject("project-1"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if len(doc.Followups) != 1 || doc.Followups[0].ProjectID != "project-1" {
		t.Fatalf("followup should keep its dangling reference: %+v", doc.Followups)
	}
}

func TestRefMarshalsNullWhenEmpty(t *testing.T) {
	f := Followup{ID: "followup-1", ClientID: "client-1", NextDate: "2026-01-01", Action: "call"}
	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	data := string(raw)
	if want := `"projectId":null`; !strings.Contains(data, want) {
		t.Fatalf("expected %s in %s", want, data)
	}
	if want := `"clientId":"client-1"`; !strings.Contains(data, want) {
		t.Fatalf("expected %s in %s", want, data)
	}

	var back Followup
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ProjectID != "" || back.ClientID != "client-1" {
		t.Fatalf("null did not round-trip: %+v", back)
	}
}

func TestCloneSharesNoMemory(t *testing.T) {
	doc := EmptyDocument()
	doc.Clients = []Client{{
		ID: "client-1", Name: "Acme", Country: "US",
		Contacts: []Contact{{Contact: "Jo"}},
		Details:  &ClientDetails{Notes: "key account"},
	}}
	doc.Partners = []Partner{{ID: "partner-1", Name: "Orion", Contacts: []Contact{{Contact: "Lee"}}}}
	doc.Products = []ProductGroup{{PartnerID: "partner-1", Partner: "Orion", Items: []string{"dies"}}}

	clone := doc.Clone()
	clone.Clients[0].Contacts[0].Contact = "changed"
	clone.Clients[0].Details.Notes = "changed"
	clone.Partners[0].Contacts[0].Contact = "changed"
	clone.Products[0].Items[0] = "changed"

	if doc.Clients[0].Contacts[0].Contact != "Jo" {
		t.Error("client contacts must not be shared")
	}
	if doc.Clients[0].Details.Notes != "key account" {
		t.Error("client details must not be shared")
	}
	if doc.Partners[0].Contacts[0].Contact != "Lee" {
		t.Error("partner contacts must not be shared")
	}
	if doc.Products[0].Items[0] != "dies" {
		t.Error("product items must not be shared")
	}
}

func TestCloneKeepsCollectionsPresent(t *testing.T) {
	clone := EmptyDocument().Clone()
	if clone.Clients == nil || clone.Projects == nil || clone.Followups == nil || clone.ProjectComments == nil {
		t.Fatalf("clone lost collections: %+v", clone)
	}
}
