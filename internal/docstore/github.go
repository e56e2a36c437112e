package docstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

const commitMessage = "CRM sync update"

// GitHubConfig locates the document file inside a repository reachable
// through the GitHub contents API.
type GitHubConfig struct {
	BaseURL string // override for tests; defaults to the public API
	Token   string
	Owner   string
	Repo    string
	Path    string
	Branch  string
}

// GitHubStore persists the document via the contents API: a GET for
// content plus sha, an authenticated PUT carrying the sha to
// update-or-create. The sha is the revision token.
type GitHubStore struct {
	httpClient *http.Client
	cfg        GitHubConfig
}

func NewGitHubStore(cfg GitHubConfig) *GitHubStore {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	return &GitHubStore{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        cfg,
	}
}

func (s *GitHubStore) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", s.cfg.BaseURL, s.cfg.Owner, s.cfg.Repo, s.cfg.Path)
}

type contentsResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// Load fetches the current document and its revision token.
func (s *GitHubStore) Load(ctx context.Context) (crm.Document, string, error) {
	payload, sha, err := s.fetch(ctx)
	if err != nil {
		return crm.Document{}, "", err
	}
	var doc crm.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return crm.Document{}, "", fmt.Errorf("decode document: %w", err)
	}
	doc.EnsureCollections()
	return doc, sha, nil
}

// Save writes the document. It always resolves the current sha first;
// a revision that does not match surfaces as ErrRevisionConflict and
// nothing is written. An empty revision may only create the file: when
// the remote document already exists the caller must load it first, so
// a writer that never saw the remote state cannot blank it out.
func (s *GitHubStore) Save(ctx context.Context, doc crm.Document, revision string) (string, error) {
	_, currentSHA, err := s.fetch(ctx)
	if err != nil && err != ErrNotFound {
		return "", err
	}
	if currentSHA != "" && revision != currentSHA {
		return "", ErrRevisionConflict
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	body := map[string]any{
		"message": commitMessage,
		"content": base64.StdEncoding.EncodeToString(append(payload, '\n')),
	}
	if currentSHA != "" {
		body["sha"] = currentSHA
	}
	if s.cfg.Branch != "" {
		body["branch"] = s.cfg.Branch
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.contentsURL(), bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("put document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apiError("put document", resp)
	}

	var result struct {
		Content contentsResponse `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode put response: %w", err)
	}
	return result.Content.SHA, nil
}

func (s *GitHubStore) fetch(ctx context.Context) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.contentsURL(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", apiError("get document", resp)
	}

	var contents contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
		return nil, "", fmt.Errorf("decode contents: %w", err)
	}

	// The API wraps base64 content across lines.
	raw := strings.ReplaceAll(contents.Content, "\n", "")
	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", fmt.Errorf("decode content: %w", err)
	}
	return payload, contents.SHA, nil
}

func (s *GitHubStore) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
}

func apiError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: %s: %s", op, resp.Status, strings.TrimSpace(string(snippet)))
}
