// Package openai implements memory.Embedder with the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/memory"
)

// Compile-time assertion
var _ memory.Embedder = (*Embedder)(nil)

// Options configure the embedder.
type Options struct {
	Model      string
	Dimensions int64
	APIKey     string
	BaseURL    string
}

// Embedder calls the OpenAI embeddings endpoint.
type Embedder struct {
	client *openai.Client
	opts   Options
}

// New creates an embedder. Without an explicit APIKey the client falls back to
// OPENAI_API_KEY.
func New(optFns ...func(o *Options)) *Embedder {
	opts := Options{
		Model:      openai.EmbeddingModelTextEmbedding3Small,
		Dimensions: 1536,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(reqOpts...)

	return &Embedder{client: &client, opts: opts}
}

// NewFromClient creates an embedder around an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Embedder {
	e := New(optFns...)
	e.client = client

	return e
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: e.opts.Model,
	}
	if e.opts.Dimensions > 0 {
		params.Dimensions = openai.Int(e.opts.Dimensions)
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %v", core.ErrExternalService, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: openai embeddings: empty response", core.ErrExternalService)
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}

	return vec, nil
}

// Dimensions returns the configured embedding size.
func (e *Embedder) Dimensions() int { return int(e.opts.Dimensions) }
