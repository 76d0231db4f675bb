package chromem

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/memory"
	"github.com/hupe1980/recallmesh/memory/embedder/hash"
)

func newStore(t *testing.T, optFns ...func(o *Options)) *Store {
	t.Helper()

	s, err := New(hash.New(), optFns...)
	require.NoError(t, err)

	return s
}

func TestStore_SaveAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Save(ctx, "alice", "prefers an aisle seat")
	require.NoError(t, err)
	_, err = s.Save(ctx, "alice", "allergic to peanuts")
	require.NoError(t, err)

	results, err := s.Search(ctx, "alice", "aisle seat please", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "prefers an aisle seat", results[0].Content)
	assert.Equal(t, "alice", results[0].OwnerID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestStore_EmptyCollection(t *testing.T) {
	s := newStore(t)

	results, err := s.Search(context.Background(), "nobody", "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i := range 3 {
		_, err := s.Save(ctx, "alice", fmt.Sprintf("alice likes city %d", i))
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, "bob", "bob likes city 1")
	require.NoError(t, err)

	results, err := s.Search(ctx, "bob", "likes city", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob", results[0].OwnerID)
	assert.Equal(t, 3, s.Count("alice"))
}

func TestStore_TruncatesToK(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i := range 5 {
		_, err := s.Save(ctx, "alice", fmt.Sprintf("note number %d", i))
		require.NoError(t, err)
	}

	results, err := s.Search(ctx, "alice", "note", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := newStore(t, func(o *Options) { o.Path = dir })
	_, err := s.Save(ctx, "alice", "lives in Lisbon")
	require.NoError(t, err)

	reopened := newStore(t, func(o *Options) { o.Path = dir })
	results, err := reopened.Search(ctx, "alice", "Lisbon", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "lives in Lisbon", results[0].Content)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Save(ctx, "", "x")
	require.ErrorIs(t, err, core.ErrOwnerMismatch)

	require.NoError(t, s.Close())
	_, err = s.Search(ctx, "alice", "x", 3)
	require.ErrorIs(t, err, core.ErrStorageUnavailable)
}

type slowEmbedder struct {
	memory.Embedder
	delay time.Duration
}

func (e slowEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	time.Sleep(e.delay)
	return e.Embedder.Embed(context.Background(), text)
}

func TestStore_SaveAfterDeadlineIsDiscarded(t *testing.T) {
	s, err := New(slowEmbedder{Embedder: hash.New(), delay: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err = s.Save(ctx, "alice", "prefers an aisle seat")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	results, err := s.Search(context.Background(), "alice", "aisle seat", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}
