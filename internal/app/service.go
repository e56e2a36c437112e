package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/backup"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/cache"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/config"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/docstore"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/ics"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/search"
	"github.com/HansvanLeerdam/extrusion-crm-app/internal/workbook"
)

// Deps carries the service's collaborators. Cache and Backup are
// optional and may be nil.
type Deps struct {
	Store  docstore.Store
	Cache  *cache.Cache
	Search *search.Service
	Backup *backup.Service
}

// Service owns the working copy of the document. Every read and
// mutation goes through its mutex; the document itself is a plain
// value with no locking of its own.
type Service struct {
	cfg     config.Config
	store   docstore.Store
	cache   *cache.Cache
	search  *search.Service
	backup  *backup.Service
	encoder *ics.Encoder

	mu       sync.Mutex
	doc      crm.Document
	revision string
}

func New(cfg config.Config, deps Deps) *Service {
	zone, err := time.LoadLocation(cfg.CalendarTZ)
	if err != nil {
		log.Printf("app: unknown calendar timezone %q, using UTC", cfg.CalendarTZ)
		zone = time.UTC
	}
	return &Service{
		cfg:     cfg,
		store:   deps.Store,
		cache:   deps.Cache,
		search:  deps.Search,
		backup:  deps.Backup,
		encoder: ics.NewEncoder(zone),
		doc:     crm.EmptyDocument(),
	}
}

// Data returns a snapshot of the working document and its revision.
// The snapshot is a deep copy; callers may read it while other
// requests keep mutating the working copy.
func (s *Service) Data() (crm.Document, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), s.revision
}

// SetData replaces the working document wholesale, as the client does
// after editing. Collections are repaired and product groups re-merged
// before the document is accepted.
func (s *Service) SetData(doc crm.Document) crm.Document {
	doc.Normalize()
	s.mu.Lock()
	s.doc = doc
	snap := doc.Clone()
	s.mu.Unlock()
	s.search.Update(snap)
	return snap
}

// LoadRemote pulls the document from the store into the working copy,
// serving from the cache when a fresh snapshot exists. A store without
// a document yields an empty one.
func (s *Service) LoadRemote(ctx context.Context) (crm.Document, string, error) {
	if s.cache != nil {
		if doc, rev, ok := s.cache.Get(ctx); ok {
			return s.adopt(doc, rev), rev, nil
		}
	}

	doc, rev, err := s.store.Load(ctx)
	if errors.Is(err, docstore.ErrNotFound) {
		doc, rev = crm.EmptyDocument(), ""
	} else if err != nil {
		return crm.Document{}, "", domainError(http.StatusBadGateway, "STORE_ERROR",
			fmt.Sprintf("load document: %v", err), nil)
	}
	doc.Normalize()

	if s.cache != nil && rev != "" {
		if err := s.cache.Put(ctx, doc, rev); err != nil {
			log.Printf("app: cache document: %v", err)
		}
	}
	return s.adopt(doc, rev), rev, nil
}

// SaveRemote pushes the working document to the store. The revision
// held since the last load or save guards against overwriting a
// concurrent writer.
func (s *Service) SaveRemote(ctx context.Context) (string, error) {
	s.mu.Lock()
	doc := s.doc.Clone()
	revision := s.revision
	s.mu.Unlock()

	rev, err := s.store.Save(ctx, doc, revision)
	if errors.Is(err, docstore.ErrRevisionConflict) {
		return "", domainError(http.StatusConflict, "REVISION_CONFLICT",
			"Document changed remotely, load before saving", nil)
	}
	if err != nil {
		return "", domainError(http.StatusBadGateway, "STORE_ERROR",
			fmt.Sprintf("save document: %v", err), nil)
	}

	s.mu.Lock()
	s.revision = rev
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Printf("app: invalidate cache: %v", err)
		}
	}
	if s.backup != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if name, err := s.backup.Snapshot(ctx, doc, rev); err != nil {
				log.Printf("app: snapshot backup: %v", err)
			} else {
				log.Printf("app: snapshot saved as %s", name)
			}
		}()
	}
	return rev, nil
}

// ImportWorkbook reconciles an uploaded spreadsheet into a fresh
// document and makes it the working copy. The previous revision is
// kept so a subsequent save still conflicts correctly.
func (s *Service) ImportWorkbook(r io.Reader) (crm.Document, error) {
	doc, err := workbook.Import(r)
	if err != nil {
		return crm.Document{}, domainError(http.StatusUnprocessableEntity, "IMPORT_FAILED", err.Error(), nil)
	}
	doc.Normalize()
	s.mu.Lock()
	s.doc = doc
	snap := doc.Clone()
	s.mu.Unlock()
	s.search.Update(snap)
	return snap, nil
}

// ExportWorkbook writes the working document as an xlsx workbook.
func (s *Service) ExportWorkbook(w io.Writer) error {
	s.mu.Lock()
	doc := s.doc.Clone()
	s.mu.Unlock()
	return workbook.Export(doc, w)
}

// CalendarFeed renders the followups as an all-day event feed.
func (s *Service) CalendarFeed() string {
	s.mu.Lock()
	doc := s.doc.Clone()
	s.mu.Unlock()

	followups := doc.SortedFollowups()
	events := make([]ics.Event, 0, len(followups))
	for _, f := range followups {
		start, err := time.ParseInLocation("2006-01-02", f.NextDate, s.encoder.Zone)
		if err != nil {
			continue
		}
		description := doc.ProjectName(f.ProjectID)
		if partner := doc.PartnerName(f.PartnerID); partner != "" {
			if description != "" {
				description += "\n"
			}
			description += partner
		}
		summary := f.Action
		if client := doc.ClientName(f.ClientID); client != "" {
			summary = client + ": " + f.Action
		}
		events = append(events, ics.Event{
			UID:         f.ID,
			Summary:     summary,
			Description: description,
			Start:       start,
			AllDay:      true,
		})
	}
	return s.encoder.Encode(s.cfg.CalendarName, events)
}

// History lists past revisions when the store keeps them.
func (s *Service) History(ctx context.Context, limit int) ([]docstore.CommitInfo, error) {
	historian, ok := s.store.(docstore.Historian)
	if !ok {
		return nil, domainError(http.StatusNotImplemented, "NO_HISTORY",
			"The configured store does not keep history", nil)
	}
	return historian.History(ctx, limit)
}

// Search queries the search facade.
func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

// Ping reports readiness of the optional cache.
func (s *Service) Ping(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Ping(ctx)
}

// AddClient adds a client to the working document.
func (s *Service) AddClient(name, country string, contact crm.Contact) (crm.Client, error) {
	s.mu.Lock()
	client, err := s.doc.AddClient(name, country, contact)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if errors.Is(err, crm.ErrDuplicateName) {
		return crm.Client{}, domainError(http.StatusConflict, "DUPLICATE_NAME",
			"A client with this name already exists", nil)
	}
	if err != nil {
		return crm.Client{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	client.Contacts = append([]crm.Contact{}, client.Contacts...)
	s.search.Update(doc)
	return client, nil
}

// UpdateClientContact edits one contact row in place.
func (s *Service) UpdateClientContact(clientID string, idx int, contact crm.Contact) error {
	s.mu.Lock()
	err := s.doc.UpdateClientContact(clientID, idx, contact)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if err != nil {
		return mutationError(err)
	}
	s.search.Update(doc)
	return nil
}

// DeleteClientContact removes a contact row, cascading to the client
// when its list empties.
func (s *Service) DeleteClientContact(clientID string, idx int) error {
	s.mu.Lock()
	err := s.doc.DeleteClientContact(clientID, idx)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if err != nil {
		return mutationError(err)
	}
	s.search.Update(doc)
	return nil
}

// DeletePartnerContact mirrors DeleteClientContact for partners.
func (s *Service) DeletePartnerContact(partnerID string, idx int) error {
	s.mu.Lock()
	err := s.doc.DeletePartnerContact(partnerID, idx)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if err != nil {
		return mutationError(err)
	}
	s.search.Update(doc)
	return nil
}

// AddProduct files a product under its partner's group.
func (s *Service) AddProduct(partnerID, product string) (crm.Document, error) {
	s.mu.Lock()
	err := s.doc.AddProduct(partnerID, product)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if err != nil {
		return crm.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	s.search.Update(doc)
	return doc, nil
}

// DeleteProduct removes one product from a group.
func (s *Service) DeleteProduct(partnerKey string, idx int) error {
	s.mu.Lock()
	err := s.doc.DeleteProduct(partnerKey, idx)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if err != nil {
		return mutationError(err)
	}
	s.search.Update(doc)
	return nil
}

// AddFollowup stores a followup with a generated id.
func (s *Service) AddFollowup(f crm.Followup) (crm.Followup, error) {
	s.mu.Lock()
	created, err := s.doc.AddFollowup(f)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if err != nil {
		return crm.Followup{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	s.search.Update(doc)
	return created, nil
}

// UpdateFollowup replaces a followup's fields.
func (s *Service) UpdateFollowup(id string, f crm.Followup) error {
	s.mu.Lock()
	err := s.doc.UpdateFollowup(id, f)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if err != nil {
		return mutationError(err)
	}
	s.search.Update(doc)
	return nil
}

// DeleteFollowup removes a followup.
func (s *Service) DeleteFollowup(id string) error {
	s.mu.Lock()
	err := s.doc.DeleteFollowup(id)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if err != nil {
		return mutationError(err)
	}
	s.search.Update(doc)
	return nil
}

// DeleteProject removes a project and its comments.
func (s *Service) DeleteProject(id string) error {
	s.mu.Lock()
	err := s.doc.DeleteProject(id)
	doc := s.doc.Clone()
	s.mu.Unlock()
	if err != nil {
		return mutationError(err)
	}
	s.search.Update(doc)
	return nil
}

// adopt installs a freshly loaded document as the working copy and
// returns an isolated snapshot of it.
func (s *Service) adopt(doc crm.Document, revision string) crm.Document {
	s.mu.Lock()
	s.doc = doc
	s.revision = revision
	snap := doc.Clone()
	s.mu.Unlock()
	s.search.Update(snap)
	return snap
}

func mutationError(err error) error {
	switch {
	case errors.Is(err, crm.ErrNotFound):
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	case errors.Is(err, crm.ErrBadIndex):
		return domainError(http.StatusUnprocessableEntity, "BAD_INDEX", "Index out of range", nil)
	default:
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
}
