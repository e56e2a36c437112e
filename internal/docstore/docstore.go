// Package docstore persists the CRM document as one revisioned JSON
// file. The revision token travels with every save so a writer holding
// a stale copy is detected before the overwrite, never after.
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

var (
	// ErrNotFound means the document file does not exist yet.
	ErrNotFound = errors.New("document not found")
	// ErrRevisionConflict means the caller's revision token no longer
	// matches the stored document.
	ErrRevisionConflict = errors.New("document changed since last read")
)

// Store reads and writes the single shared document. Save returns the
// new revision token on success.
type Store interface {
	Load(ctx context.Context) (crm.Document, string, error)
	Save(ctx context.Context, doc crm.Document, revision string) (string, error)
}

// CommitInfo describes one revision of the document.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Historian is implemented by backends that can list past revisions.
type Historian interface {
	History(ctx context.Context, limit int) ([]CommitInfo, error)
}
