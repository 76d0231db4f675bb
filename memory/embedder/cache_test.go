package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}

	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Dimensions() int { return 2 }

func TestCachedEmbedder_HitsCache(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := NewCached(inner)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	first, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	c.Wait()

	second, err := c.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 2, c.Dimensions())
}

func TestCachedEmbedder_ReturnsCopies(t *testing.T) {
	c, err := NewCached(&countingEmbedder{})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	v, _ := c.Embed(ctx, "abc")
	c.Wait()
	v[0] = 99

	again, _ := c.Embed(ctx, "abc")
	assert.Equal(t, float32(3), again[0])
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	c, err := NewCached(inner, func(o *CacheOptions) { o.MaxEntries = 8 })
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	c.Wait()
	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}
