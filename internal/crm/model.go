// Package crm holds the CRM data model and the mutations the
// application performs on it. The Document is the aggregate root and
// the sole unit of persistence.
package crm

import "encoding/json"

// Ref is a weak reference to another entity by id. The zero value
// marshals to JSON null so absent foreign keys are stored as null, not
// as empty strings.
type Ref string

func (r Ref) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = Ref(s)
	return nil
}

// Contact is a person attached to a client or partner. It has no
// identity of its own; two contacts are the same when all three fields
// match exactly.
type Contact struct {
	Contact string `json:"contact"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// ClientDetails carries the free-text panels of the client page.
type ClientDetails struct {
	Address  string `json:"address"`
	Notes    string `json:"notes"`
	Notebook string `json:"notebook"`
}

// Client name is unique case-insensitively. A client whose contact list
// becomes empty through a delete is removed from the document.
type Client struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Country  string         `json:"country"`
	Contacts []Contact      `json:"contacts"`
	Details  *ClientDetails `json:"details,omitempty"`
}

type Partner struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Contacts []Contact `json:"contacts"`
}

// ProductGroup holds the deduplicated product list of one partner.
// Imported groups carry only the partner name; groups created in the
// app carry the partner id as well.
type ProductGroup struct {
	PartnerID string   `json:"partnerId"`
	Partner   string   `json:"partner"`
	Items     []string `json:"items"`
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClientID  Ref    `json:"clientId"`
	PartnerID Ref    `json:"partnerId"`
	ProductID string `json:"productId"`
	StartDate string `json:"startDate"`
	Status    string `json:"status"`
}

type Followup struct {
	ID        string `json:"id"`
	ClientID  Ref    `json:"clientId"`
	ProjectID Ref    `json:"projectId"`
	PartnerID Ref    `json:"partnerId"`
	ProductID string `json:"productId"`
	NextDate  string `json:"nextDate"`
	Action    string `json:"action"`
}

// Comment types accepted on a project.
const (
	CommentNote  = "note"
	CommentCall  = "call"
	CommentEmail = "email"
	CommentOffer = "offer"
	CommentVisit = "visit"
)

// ProjectComment lives and dies with its project.
type ProjectComment struct {
	ID        string `json:"id"`
	ProjectID Ref    `json:"projectId"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	Date      string `json:"date"`
}

// Document is the aggregate holding every collection. It owns its
// children exclusively; foreign keys between collections are weak and
// never validated (a followup may point at a client that is gone).
type Document struct {
	Clients         []Client         `json:"clients"`
	Partners        []Partner        `json:"partners"`
	Products        []ProductGroup   `json:"products"`
	Projects        []Project        `json:"projects"`
	Followups       []Followup       `json:"followups"`
	ProjectComments []ProjectComment `json:"projectComments"`
}

// EmptyDocument returns a document with every collection present and
// empty, the shape the stored JSON always has.
func EmptyDocument() Document {
	return Document{
		Clients:         []Client{},
		Partners:        []Partner{},
		Products:        []ProductGroup{},
		Projects:        []Project{},
		Followups:       []Followup{},
		ProjectComments: []ProjectComment{},
	}
}

// EnsureCollections replaces nil collections with empty ones so a
// partially-populated document marshals with all six keys.
func (d *Document) EnsureCollections() {
	if d.Clients == nil {
		d.Clients = []Client{}
	}
	if d.Partners == nil {
		d.Partners = []Partner{}
	}
	if d.Products == nil {
		d.Products = []ProductGroup{}
	}
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	if d.Followups == nil {
		d.Followups = []Followup{}
	}
	if d.ProjectComments == nil {
		d.ProjectComments = []ProjectComment{}
	}
}

// Clone returns a deep copy sharing no memory with the receiver. Any
// document handed across a goroutine boundary must be a clone; the
// mutations edit slices in place.
func (d Document) Clone() Document {
	out := Document{
		Clients:         make([]Client, len(d.Clients)),
		Partners:        make([]Partner, len(d.Partners)),
		Products:        make([]ProductGroup, len(d.Products)),
		Projects:        append([]Project{}, d.Projects...),
		Followups:       append([]Followup{}, d.Followups...),
		ProjectComments: append([]ProjectComment{}, d.ProjectComments...),
	}
	for i, c := range d.Clients {
		c.Contacts = append([]Contact{}, c.Contacts...)
		if c.Details != nil {
			details := *c.Details
			c.Details = &details
		}
		out.Clients[i] = c
	}
	for i, p := range d.Partners {
		p.Contacts = append([]Contact{}, p.Contacts...)
		out.Partners[i] = p
	}
	for i, g := range d.Products {
		g.Items = append([]string{}, g.Items...)
		out.Products[i] = g
	}
	return out
}

// ClientName resolves a client id to its display name, empty when the
// reference dangles.
func (d *Document) ClientName(id Ref) string {
	for _, c := range d.Clients {
		if c.ID == string(id) {
			return c.Name
		}
	}
	return ""
}

// PartnerName resolves a partner id to its display name.
func (d *Document) PartnerName(id Ref) string {
	for _, p := range d.Partners {
		if p.ID == string(id) {
			return p.Name
		}
	}
	return ""
}

// ProjectName resolves a project id to its display name.
func (d *Document) ProjectName(id Ref) string {
	for _, p := range d.Projects {
		if p.ID == string(id) {
			return p.Name
		}
	}
	return ""
}
