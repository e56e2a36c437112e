package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

const (
	documentFile = "data.json"
	mainBranch   = "main"
)

// GitStore keeps the document in a plain local git repository, one
// commit per save. The commit hash is the revision token. Serves
// offline and development deployments where no hosted content API is
// available, with the same staleness semantics.
type GitStore struct {
	dir    string
	author string
	mu     sync.Mutex
}

func NewGitStore(dir, author string) *GitStore {
	if author == "" {
		author = "crm"
	}
	return &GitStore{dir: dir, author: author}
}

// Load reads the document at the head of main.
func (s *GitStore) Load(ctx context.Context) (crm.Document, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.ensure()
	if err != nil {
		return crm.Document{}, "", err
	}
	commit, err := headCommit(repo)
	if err != nil {
		return crm.Document{}, "", err
	}
	doc, err := readDocument(commit)
	if err != nil {
		return crm.Document{}, "", err
	}
	return doc, commit.Hash.String(), nil
}

// Save commits the document on main. A revision that does not match
// the head is rejected before anything is written; since the baseline
// commit always exists, that includes an empty revision from a caller
// that never loaded.
func (s *GitStore) Save(ctx context.Context, doc crm.Document, revision string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.ensure()
	if err != nil {
		return "", err
	}
	head, err := headCommit(repo)
	if err != nil {
		return "", err
	}
	if revision != head.Hash.String() {
		return "", ErrRevisionConflict
	}

	hash, err := s.commit(repo, doc, commitMessage)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// History lists the most recent revisions, newest first.
func (s *GitStore) History(ctx context.Context, limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.ensure()
	if err != nil {
		return nil, err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", mainBranch, err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(c *object.Commit) error {
		items = append(items, CommitInfo{
			Hash:      c.Hash.String(),
			Message:   c.Message,
			Author:    c.Author.Name,
			CreatedAt: c.Author.When,
		})
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ensure opens the repository, initializing it with an empty document
// baseline on first use.
func (s *GitStore) ensure() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	hash, err := s.commit(repo, crm.EmptyDocument(), "Initialize CRM document")
	if err != nil {
		return nil, err
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(mainBranch), hash)); err != nil {
		return nil, fmt.Errorf("set %s ref: %w", mainBranch, err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))); err != nil {
		return nil, fmt.Errorf("set HEAD: %w", err)
	}
	return repo, nil
}

func (s *GitStore) commit(repo *git.Repository, doc crm.Document, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	doc.EnsureCollections()
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, documentFile), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", documentFile, err)
	}
	if _, err := worktree.Add(documentFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  s.author,
			Email: s.author + "@crm.local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit: %w", err)
	}
	return hash, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", mainBranch, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit: %w", err)
	}
	return commit, nil
}

func readDocument(commit *object.Commit) (crm.Document, error) {
	file, err := commit.File(documentFile)
	if err != nil {
		return crm.Document{}, fmt.Errorf("load %s from commit: %w", documentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return crm.Document{}, fmt.Errorf("open document reader: %w", err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return crm.Document{}, fmt.Errorf("read document: %w", err)
	}
	var doc crm.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return crm.Document{}, fmt.Errorf("decode document: %w", err)
	}
	doc.EnsureCollections()
	return doc, nil
}
