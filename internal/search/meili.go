package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxEntities = "crm_entities"

// Meili indexes the flattened document in Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}

	mu       sync.Mutex
	lastUIDs map[string]bool
}

// NewMeili creates the client and configures the index. The instance
// stays usable when Meilisearch is down; health recovers via a
// background probe and callers fall back meanwhile.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client:   client,
		done:     make(chan struct{}),
		lastUIDs: map[string]bool{},
	}
	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxEntities,
		PrimaryKey: "uid",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxEntities, err)
	}

	index := m.client.Index(idxEntities)
	filterable := []interface{}{"type"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"title", "detail"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Reindex upserts the given records and deletes the ones that
// disappeared since the previous reindex.
func (m *Meili) Reindex(records []record) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	index := m.client.Index(idxEntities)

	current := make(map[string]bool, len(records))
	for _, r := range records {
		current[r.UID] = true
	}

	m.mu.Lock()
	var stale []string
	for uid := range m.lastUIDs {
		if !current[uid] {
			stale = append(stale, uid)
		}
	}
	m.lastUIDs = current
	m.mu.Unlock()

	for _, uid := range stale {
		if _, err := index.DeleteDocument(uid, nil); err != nil {
			return fmt.Errorf("delete stale record %s: %w", uid, err)
		}
	}
	if len(records) == 0 {
		return nil
	}
	if _, err := index.AddDocuments(records, nil); err != nil {
		return fmt.Errorf("index records: %w", err)
	}
	return nil
}

// Search queries the entity index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}
	req := &meili.SearchRequest{Limit: limit}
	if q.Type != "" {
		req.Filter = fmt.Sprintf("type = %q", q.Type)
	}

	resp, err := m.client.Index(idxEntities).Search(q.Text, req)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, Result{
			Type:   ResultType(decodeString(hit, "type")),
			ID:     decodeString(hit, "id"),
			Title:  decodeString(hit, "title"),
			Detail: decodeString(hit, "detail"),
		})
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
