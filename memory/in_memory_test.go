package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/memory/embedder/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var _ core.MemoryStore = (*InMemoryStore)(nil)

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("boom")
}

func (failingEmbedder) Dimensions() int { return 1 }

// slowEmbedder ignores ctx and sleeps before delegating.
type slowEmbedder struct {
	Embedder
	delay time.Duration
}

func (e slowEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	time.Sleep(e.delay)
	return e.Embedder.Embed(context.Background(), text)
}

func TestInMemoryStore_SaveAfterDeadlineIsDiscarded(t *testing.T) {
	store := NewInMemoryStore(slowEmbedder{Embedder: hash.New(), delay: 50 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := store.Save(ctx, "alice", "prefers an aisle seat")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, store.Len("alice"))
}

func TestInMemoryStore_SaveAndSearch(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(hash.New())

	id, err := store.Save(ctx, "alice", "prefers an aisle seat")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = store.Save(ctx, "alice", "allergic to peanuts")
	require.NoError(t, err)

	results, err := store.Search(ctx, "alice", "aisle seat", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "prefers an aisle seat", results[0].Content)
	assert.Equal(t, id, results[0].ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.Equal(t, 2, store.Len("alice"))
}

func TestInMemoryStore_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(hash.New())

	_, err := store.Save(ctx, "alice", "likes ramen")
	require.NoError(t, err)
	_, err = store.Save(ctx, "bob", "likes ramen too")
	require.NoError(t, err)

	results, err := store.Search(ctx, "bob", "ramen", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	for _, r := range results {
		assert.Equal(t, "bob", r.OwnerID)
	}

	empty, err := store.Search(ctx, "carol", "ramen", 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInMemoryStore_TruncatesToK(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(hash.New())

	for i := range 5 {
		_, err := store.Save(ctx, "alice", fmt.Sprintf("trip note %d", i))
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, "alice", "trip", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	none, err := store.Search(ctx, "alice", "trip", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStore_DeterministicOrder(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(hash.New())

	for range 4 {
		_, err := store.Save(ctx, "alice", "same text")
		require.NoError(t, err)
	}

	first, err := store.Search(ctx, "alice", "same text", 4)
	require.NoError(t, err)
	second, err := store.Search(ctx, "alice", "same text", 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].ID, first[i].ID)
	}
}

func TestInMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty owner", func(t *testing.T) {
		store := NewInMemoryStore(hash.New())
		_, err := store.Save(ctx, "", "x")
		require.ErrorIs(t, err, core.ErrOwnerMismatch)
		_, err = store.Search(ctx, "", "x", 3)
		require.ErrorIs(t, err, core.ErrOwnerMismatch)
	})

	t.Run("embedder failure", func(t *testing.T) {
		store := NewInMemoryStore(failingEmbedder{})
		_, err := store.Save(ctx, "alice", "x")
		require.ErrorIs(t, err, core.ErrExternalService)
		assert.False(t, core.IsFatal(err))
	})

	t.Run("closed", func(t *testing.T) {
		store := NewInMemoryStore(hash.New())
		require.NoError(t, store.Close())
		_, err := store.Save(ctx, "alice", "x")
		require.ErrorIs(t, err, core.ErrStorageUnavailable)
		_, err = store.Search(ctx, "alice", "x", 3)
		require.ErrorIs(t, err, core.ErrStorageUnavailable)
		assert.True(t, core.IsFatal(err))
	})
}

func TestInMemoryStore_Concurrency(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(hash.New())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("u%d", i%4)
			_, _ = store.Save(ctx, owner, fmt.Sprintf("note %d", i))
			_, _ = store.Search(ctx, owner, "note", 3)
		}(i)
	}
	wg.Wait()

	total := 0
	for i := range 4 {
		total += store.Len(fmt.Sprintf("u%d", i))
	}
	assert.Equal(t, 20, total)
}
