// Package chromem implements core.MemoryStore on top of chromem-go, an
// embedded pure Go vector database. Each owner gets a dedicated collection
// and every document additionally carries its owner in metadata.
package chromem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/memory"
)

const (
	metaOwner     = "owner_id"
	metaCreatedAt = "created_at"
)

// Compile-time assertion
var _ core.MemoryStore = (*Store)(nil)

// Options configure the chromem store.
type Options struct {
	// Path enables on-disk persistence when non-empty.
	Path string
	// Compress gzips persisted collections.
	Compress bool
}

// Store is a chromem-go backed memory store.
type Store struct {
	db       *chromem.DB
	embedder memory.Embedder
	now      func() time.Time

	mu          sync.RWMutex
	closed      bool
	collections map[string]*chromem.Collection // ownerID -> collection
}

// New creates a store. With Options.Path set the database is loaded from and
// persisted to that directory.
func New(embedder memory.Embedder, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	db := chromem.NewDB()
	if opts.Path != "" {
		var err error

		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: open chromem db: %v", core.ErrStorageUnavailable, err)
		}
	}

	return &Store{
		db:          db,
		embedder:    embedder,
		now:         time.Now,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// Save embeds content and stores it in ownerID's collection.
func (s *Store) Save(ctx context.Context, ownerID, content string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: save requires an owner id", core.ErrOwnerMismatch)
	}

	col, err := s.collection(ownerID)
	if err != nil {
		return "", err
	}

	emb, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: embed memory: %v", core.ErrExternalService, err)
	}

	// A save whose deadline passed while embedding is never committed.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: emb,
		Metadata: map[string]string{
			metaOwner:     ownerID,
			metaCreatedAt: s.now().UTC().Format(time.RFC3339Nano),
		},
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("%w: add document: %v", core.ErrStorageUnavailable, err)
	}

	return id, nil
}

// Search returns up to k of ownerID's memories most similar to query.
func (s *Store) Search(ctx context.Context, ownerID, query string, k int) ([]core.SearchResult, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: search requires an owner id", core.ErrOwnerMismatch)
	}

	col, err := s.collection(ownerID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	n := min(k, col.Count())
	if n <= 0 {
		return []core.SearchResult{}, nil
	}

	qemb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", core.ErrExternalService, err)
	}

	found, err := col.QueryEmbedding(ctx, qemb, n, map[string]string{metaOwner: ownerID}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chromem query: %v", core.ErrStorageUnavailable, err)
	}

	results := make([]core.SearchResult, 0, len(found))
	for _, r := range found {
		results = append(results, core.SearchResult{
			ID:      r.ID,
			Content: r.Content,
			OwnerID: r.Metadata[metaOwner],
			Score:   float64(r.Similarity),
		})
	}

	results = core.FilterOwner(results, ownerID)
	core.SortResults(results)

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Count returns the number of memories stored for ownerID.
func (s *Store) Count(ownerID string) int {
	col, err := s.collection(ownerID)
	if err != nil {
		return 0
	}

	return col.Count()
}

// Close marks the store unavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

// collection returns the owner's collection, creating it on first use.
func (s *Store) collection(ownerID string) (*chromem.Collection, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: memory store closed", core.ErrStorageUnavailable)
	}
	col, ok := s.collections[ownerID]
	s.mu.RUnlock()

	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: memory store closed", core.ErrStorageUnavailable)
	}

	if col, ok := s.collections[ownerID]; ok {
		return col, nil
	}

	// Embeddings are always supplied, the embedding func is never invoked.
	col, err := s.db.GetOrCreateCollection("user_"+ownerID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection: %v", core.ErrStorageUnavailable, err)
	}

	s.collections[ownerID] = col

	return col, nil
}
