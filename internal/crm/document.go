package crm

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/util"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("name already exists")
	ErrBadIndex      = errors.New("index out of range")
)

// CompareNames orders display names the way the UI lists them.
func CompareNames(a, b string) int {
	return collate.New(language.English, collate.Loose).CompareString(a, b)
}

// Normalize repairs the document after a wholesale replacement: all
// collections present and product groups merged per partner.
func (d *Document) Normalize() {
	d.EnsureCollections()
	d.Products = MergeProductGroups(d.Products)
}

// MergeProductGroups unions groups that refer to the same partner,
// matched by id or by name when the id is absent. Item lists come back
// deduplicated and sorted; group order follows partner names. Applied
// on every product write so accidental duplicate groups self-heal.
func MergeProductGroups(groups []ProductGroup) []ProductGroup {
	merged := make(map[string]*ProductGroup)
	order := []string{}
	for _, g := range groups {
		key := g.PartnerID
		if key == "" {
			key = g.Partner
		}
		if key == "" {
			key = "unknown"
		}
		existing, ok := merged[key]
		if !ok {
			copied := ProductGroup{
				PartnerID: g.PartnerID,
				Partner:   g.Partner,
				Items:     append([]string{}, g.Items...),
			}
			merged[key] = &copied
			order = append(order, key)
			continue
		}
		existing.Items = append(existing.Items, g.Items...)
	}

	result := make([]ProductGroup, 0, len(order))
	for _, key := range order {
		g := merged[key]
		seen := make(map[string]bool, len(g.Items))
		items := make([]string, 0, len(g.Items))
		for _, item := range g.Items {
			if seen[item] {
				continue
			}
			seen[item] = true
			items = append(items, item)
		}
		sort.Slice(items, func(i, j int) bool {
			return CompareNames(items[i], items[j]) < 0
		})
		g.Items = items
		result = append(result, *g)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return CompareNames(result[i].Partner, result[j].Partner) < 0
	})
	return result
}

// AddClient appends a new client with a single contact row. Names are
// unique case-insensitively.
func (d *Document) AddClient(name, country string, contact Contact) (Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Client{}, errors.New("client name is required")
	}
	for _, c := range d.Clients {
		if strings.EqualFold(c.Name, name) {
			return Client{}, ErrDuplicateName
		}
	}
	client := Client{
		ID:       util.NewID("client"),
		Name:     name,
		Country:  strings.TrimSpace(country),
		Contacts: []Contact{contact},
	}
	d.Clients = append(d.Clients, client)
	return client, nil
}

// UpdateClientContact replaces the contact at idx, trimming all fields.
func (d *Document) UpdateClientContact(clientID string, idx int, contact Contact) error {
	for i := range d.Clients {
		if d.Clients[i].ID != clientID {
			continue
		}
		if idx < 0 || idx >= len(d.Clients[i].Contacts) {
			return ErrBadIndex
		}
		d.Clients[i].Contacts[idx] = Contact{
			Contact: strings.TrimSpace(contact.Contact),
			Email:   strings.TrimSpace(contact.Email),
			Phone:   strings.TrimSpace(contact.Phone),
		}
		return nil
	}
	return ErrNotFound
}

// DeleteClientContact removes the contact at idx. A client left with no
// contacts is removed from the document entirely.
func (d *Document) DeleteClientContact(clientID string, idx int) error {
	for i := range d.Clients {
		if d.Clients[i].ID != clientID {
			continue
		}
		if idx < 0 || idx >= len(d.Clients[i].Contacts) {
			return ErrBadIndex
		}
		d.Clients[i].Contacts = append(d.Clients[i].Contacts[:idx], d.Clients[i].Contacts[idx+1:]...)
		if len(d.Clients[i].Contacts) == 0 {
			d.Clients = append(d.Clients[:i], d.Clients[i+1:]...)
		}
		return nil
	}
	return ErrNotFound
}

// DeletePartnerContact mirrors DeleteClientContact, including the
// cascade once the contact list is empty.
func (d *Document) DeletePartnerContact(partnerID string, idx int) error {
	for i := range d.Partners {
		if d.Partners[i].ID != partnerID {
			continue
		}
		if idx < 0 || idx >= len(d.Partners[i].Contacts) {
			return ErrBadIndex
		}
		d.Partners[i].Contacts = append(d.Partners[i].Contacts[:idx], d.Partners[i].Contacts[idx+1:]...)
		if len(d.Partners[i].Contacts) == 0 {
			d.Partners = append(d.Partners[:i], d.Partners[i+1:]...)
		}
		return nil
	}
	return ErrNotFound
}

// AddProduct files a product under the partner's group, creating the
// group when missing and re-merging afterwards.
func (d *Document) AddProduct(partnerID, product string) error {
	product = strings.TrimSpace(product)
	if partnerID == "" || product == "" {
		return errors.New("partner and product are required")
	}
	partnerName := ""
	for _, p := range d.Partners {
		if p.ID == partnerID {
			partnerName = p.Name
			break
		}
	}

	found := false
	for i := range d.Products {
		g := &d.Products[i]
		if g.PartnerID == partnerID || (g.PartnerID == "" && g.Partner == partnerName && partnerName != "") {
			found = true
			present := false
			for _, item := range g.Items {
				if item == product {
					present = true
					break
				}
			}
			if !present {
				g.Items = append(g.Items, product)
			}
			break
		}
	}
	if !found {
		d.Products = append(d.Products, ProductGroup{
			PartnerID: partnerID,
			Partner:   partnerName,
			Items:     []string{product},
		})
	}
	d.Products = MergeProductGroups(d.Products)
	return nil
}

// DeleteProduct removes the item at idx from the partner's group,
// matched by id or by name for imported groups. An emptied group is
// dropped.
func (d *Document) DeleteProduct(partnerKey string, idx int) error {
	for i := range d.Products {
		g := &d.Products[i]
		if g.PartnerID != partnerKey && !(g.PartnerID == "" && g.Partner == partnerKey) {
			continue
		}
		if idx < 0 || idx >= len(g.Items) {
			return ErrBadIndex
		}
		g.Items = append(g.Items[:idx], g.Items[idx+1:]...)
		if len(g.Items) == 0 {
			d.Products = append(d.Products[:i], d.Products[i+1:]...)
		}
		d.Products = MergeProductGroups(d.Products)
		return nil
	}
	return ErrNotFound
}

// AddFollowup stores a new followup, generating its id.
func (d *Document) AddFollowup(f Followup) (Followup, error) {
	if f.NextDate == "" || f.ClientID == "" || strings.TrimSpace(f.Action) == "" {
		return Followup{}, errors.New("date, client and action are required")
	}
	f.ID = util.NewID("followup")
	d.Followups = append(d.Followups, f)
	return f, nil
}

// UpdateFollowup replaces the fields of an existing followup in place.
func (d *Document) UpdateFollowup(id string, f Followup) error {
	for i := range d.Followups {
		if d.Followups[i].ID != id {
			continue
		}
		f.ID = id
		d.Followups[i] = f
		return nil
	}
	return ErrNotFound
}

// DeleteFollowup removes the followup with the given id.
func (d *Document) DeleteFollowup(id string) error {
	for i := range d.Followups {
		if d.Followups[i].ID == id {
			d.Followups = append(d.Followups[:i], d.Followups[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// DeleteProject removes a project and cascade-deletes its comments.
// Followups referencing the project keep their dangling reference.
func (d *Document) DeleteProject(id string) error {
	found := false
	for i := range d.Projects {
		if d.Projects[i].ID == id {
			d.Projects = append(d.Projects[:i], d.Projects[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	kept := d.ProjectComments[:0]
	for _, c := range d.ProjectComments {
		if string(c.ProjectID) != id {
			kept = append(kept, c)
		}
	}
	d.ProjectComments = kept
	return nil
}

// SortedFollowups returns the followups ordered by next date ascending,
// the order the dashboard presents them in.
func (d *Document) SortedFollowups() []Followup {
	out := append([]Followup{}, d.Followups...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextDate < out[j].NextDate
	})
	return out
}
