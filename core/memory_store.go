package core

import (
	"context"
	"time"
)

// MemoryRecord is a single immutable memory owned by one user.
type MemoryRecord struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryStore defines append-only persistence and owner scoped similarity
// search for memory snippets. Implementations must never return a record
// whose owner differs from the requested owner, and must order results by
// descending score with ties broken by ascending ID.
type MemoryStore interface {
	Save(ctx context.Context, ownerID, content string) (string, error)
	Search(ctx context.Context, ownerID, query string, k int) ([]SearchResult, error)
}
