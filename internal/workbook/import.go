package workbook

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/util"
)

// Sheets holds the raw rows of every recognized sheet. Absent sheets
// are nil.
type Sheets struct {
	Clients   []Row
	Partners  []Row
	Products  []Row
	Projects  []Row
	Followups []Row
	Comments  []Row
}

// Import reads an xlsx workbook and reconciles it into a normalized
// document.
func Import(r io.Reader) (crm.Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return crm.Document{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return Assemble(Sheets{
		Clients:   sheetRows(f, SheetClients),
		Partners:  sheetRows(f, SheetPartners),
		Products:  sheetRows(f, SheetProducts),
		Projects:  sheetRows(f, SheetProjects),
		Followups: sheetRows(f, SheetFollowups),
		Comments:  sheetRows(f, SheetComments),
	}), nil
}

// Assemble combines per-sheet rows into one document. Malformed rows
// are skipped, never rejected; ids are generated where the sheet
// carries none; references are kept verbatim without integrity checks.
func Assemble(s Sheets) crm.Document {
	doc := crm.EmptyDocument()
	doc.Clients = dedupeClients(s.Clients)
	doc.Partners = dedupePartners(s.Partners)
	doc.Products = groupProducts(s.Products)
	doc.Projects = mapProjects(s.Projects)
	doc.Followups = mapFollowups(s.Followups)
	doc.ProjectComments = mapComments(s.Comments)
	return doc
}

// contactFromRow builds a contact when any of the three contact cells
// is populated.
func contactFromRow(r Row) (crm.Contact, bool) {
	c := crm.Contact{
		Contact: r.Get("Contact Person"),
		Email:   r.Get("Email"),
		Phone:   r.Get("Phone"),
	}
	if c.Contact == "" && c.Email == "" && c.Phone == "" {
		return crm.Contact{}, false
	}
	return c, true
}

func appendContact(contacts []crm.Contact, c crm.Contact) []crm.Contact {
	for _, existing := range contacts {
		if existing == c {
			return contacts
		}
	}
	return append(contacts, c)
}

// dedupeClients merges rows into unique clients keyed by the trimmed,
// case-folded name. The first-seen row wins the casing and scalar
// attributes; later rows only contribute contacts. Blank-name rows are
// skipped.
func dedupeClients(rows []Row) []crm.Client {
	clients := []crm.Client{}
	index := map[string]int{}
	for _, r := range rows {
		name := strings.TrimSpace(r.Get("Client Name"))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		i, ok := index[key]
		if !ok {
			id := r.Get("Client ID")
			if id == "" {
				id = util.NewID("client")
			}
			clients = append(clients, crm.Client{
				ID:       id,
				Name:     name,
				Country:  r.Get("Country"),
				Contacts: []crm.Contact{},
			})
			i = len(clients) - 1
			index[key] = i
		}
		if c, ok := contactFromRow(r); ok {
			clients[i].Contacts = appendContact(clients[i].Contacts, c)
		}
	}
	return clients
}

func dedupePartners(rows []Row) []crm.Partner {
	partners := []crm.Partner{}
	index := map[string]int{}
	for _, r := range rows {
		name := strings.TrimSpace(r.Get("Partner Name"))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		i, ok := index[key]
		if !ok {
			id := r.Get("Partner ID")
			if id == "" {
				id = util.NewID("partner")
			}
			partners = append(partners, crm.Partner{
				ID:       id,
				Name:     name,
				Contacts: []crm.Contact{},
			})
			i = len(partners) - 1
			index[key] = i
		}
		if c, ok := contactFromRow(r); ok {
			partners[i].Contacts = appendContact(partners[i].Contacts, c)
		}
	}
	return partners
}

// groupProducts collects (partner, product) pairs into one group per
// partner. Group order is first-seen; item lists are deduplicated and
// sorted. Rows missing either value are skipped.
func groupProducts(rows []Row) []crm.ProductGroup {
	groups := []crm.ProductGroup{}
	index := map[string]int{}
	for _, r := range rows {
		partner := r.Get("Partner")
		product := r.Get("Product")
		if partner == "" || product == "" {
			continue
		}
		i, ok := index[partner]
		if !ok {
			groups = append(groups, crm.ProductGroup{Partner: partner, Items: []string{}})
			i = len(groups) - 1
			index[partner] = i
		}
		present := false
		for _, item := range groups[i].Items {
			if item == product {
				present = true
				break
			}
		}
		if !present {
			groups[i].Items = append(groups[i].Items, product)
		}
	}
	for i := range groups {
		items := groups[i].Items
		sort.Slice(items, func(a, b int) bool {
			return crm.CompareNames(items[a], items[b]) < 0
		})
	}
	return groups
}

func mapProjects(rows []Row) []crm.Project {
	projects := make([]crm.Project, 0, len(rows))
	for _, r := range rows {
		id := r.Get("Project ID")
		if id == "" {
			id = util.NewID("project")
		}
		projects = append(projects, crm.Project{
			ID:        id,
			Name:      r.Get("Project Name"),
			ClientID:  crm.Ref(r.Get("Client ID")),
			PartnerID: crm.Ref(r.Get("Partner ID")),
			ProductID: r.Get("Product"),
			StartDate: r.Get("Start Date"),
			Status:    r.Get("Status"),
		})
	}
	return projects
}

func mapFollowups(rows []Row) []crm.Followup {
	followups := make([]crm.Followup, 0, len(rows))
	for _, r := range rows {
		id := r.Get("Follow-Up ID")
		if id == "" {
			id = util.NewID("followup")
		}
		followups = append(followups, crm.Followup{
			ID:        id,
			ClientID:  crm.Ref(r.Get("Client ID")),
			ProjectID: crm.Ref(r.Get("Project ID")),
			PartnerID: crm.Ref(r.Get("Partner ID")),
			ProductID: r.Get("Product"),
			NextDate:  r.Get("Next Date", "Date"),
			Action:    r.Get("Action"),
		})
	}
	return followups
}

func mapComments(rows []Row) []crm.ProjectComment {
	comments := make([]crm.ProjectComment, 0, len(rows))
	for _, r := range rows {
		id := r.Get("Comment ID")
		if id == "" {
			id = util.NewID("comment")
		}
		typ := r.Get("Type")
		if typ == "" {
			typ = crm.CommentNote
		}
		date := r.Get("Date")
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		comments = append(comments, crm.ProjectComment{
			ID:        id,
			ProjectID: crm.Ref(r.Get("Project ID")),
			Type:      typ,
			Text:      r.Get("Comment"),
			Date:      date,
		})
	}
	return comments
}
