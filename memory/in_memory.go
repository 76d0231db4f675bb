package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/recallmesh/core"
)

// storedMemory is the internal representation persisted by InMemoryStore.
type storedMemory struct {
	record    core.MemoryRecord
	embedding []float32
}

// InMemoryStore is a process‑local MemoryStore. It offers append-only
// owner scoped records with exact cosine similarity search.
//
// Concurrency: protected by RWMutex; embeddings are computed outside the lock.
// Search: linear scan over the owner's records only, followed by an owner
// post-filter and deterministic ordering (score desc, id asc).
type InMemoryStore struct {
	embedder Embedder
	now      func() time.Time

	mu      sync.RWMutex
	closed  bool
	records map[string][]storedMemory // ownerID -> records in insertion order
}

// NewInMemoryStore creates a new in-memory memory store using embedder.
func NewInMemoryStore(embedder Embedder) *InMemoryStore {
	return &InMemoryStore{
		embedder: embedder,
		now:      time.Now,
		records:  make(map[string][]storedMemory),
	}
}

// Save embeds content and appends it under ownerID.
func (m *InMemoryStore) Save(ctx context.Context, ownerID, content string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: save requires an owner id", core.ErrOwnerMismatch)
	}

	if err := m.checkOpen(); err != nil {
		return "", err
	}

	emb, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: embed memory: %v", core.ErrExternalService, err)
	}

	// A save whose deadline passed while embedding is never committed.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rec := core.MemoryRecord{ID: uuid.NewString(), Content: content, OwnerID: ownerID, CreatedAt: m.now()}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", fmt.Errorf("%w: memory store closed", core.ErrStorageUnavailable)
	}

	m.records[ownerID] = append(m.records[ownerID], storedMemory{record: rec, embedding: emb})

	return rec.ID, nil
}

// Search returns up to k of ownerID's memories most similar to query.
func (m *InMemoryStore) Search(ctx context.Context, ownerID, query string, k int) ([]core.SearchResult, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: search requires an owner id", core.ErrOwnerMismatch)
	}

	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	if k <= 0 {
		return []core.SearchResult{}, nil
	}

	qemb, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", core.ErrExternalService, err)
	}

	m.mu.RLock()
	owned := m.records[ownerID]
	results := make([]core.SearchResult, 0, len(owned))
	for _, sm := range owned {
		results = append(results, core.SearchResult{
			ID:      sm.record.ID,
			Content: sm.record.Content,
			OwnerID: sm.record.OwnerID,
			Score:   Cosine(qemb, sm.embedding),
		})
	}
	m.mu.RUnlock()

	results = core.FilterOwner(results, ownerID)
	core.SortResults(results)

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Len returns the number of memories stored for ownerID.
func (m *InMemoryStore) Len(ownerID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records[ownerID])
}

// Close marks the store unavailable; later calls fail with ErrStorageUnavailable.
func (m *InMemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *InMemoryStore) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("%w: memory store closed", core.ErrStorageUnavailable)
	}

	return nil
}
