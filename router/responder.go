package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/recallmesh/checkpoint"
	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/model"
)

// DefaultMaxHistory bounds the per-thread history a ModelResponder keeps.
const DefaultMaxHistory = 20

// Responder answers a message routed to one category.
type Responder interface {
	Respond(ctx context.Context, key core.CheckpointKey, message string) (string, error)
}

// ModelResponder answers with a fixed system prompt and a short,
// process-local conversation buffer per thread. Calls for the same key are
// serialized so each exchange lands in the buffer whole and in call order;
// different keys proceed in parallel.
type ModelResponder struct {
	model      model.Model
	prompt     string
	maxHistory int
	locker     *checkpoint.Locker

	mu      sync.Mutex
	history map[core.CheckpointKey][]core.Content
}

// NewModelResponder creates a responder; maxHistory <= 0 selects
// DefaultMaxHistory.
func NewModelResponder(m model.Model, prompt string, maxHistory int) *ModelResponder {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	return &ModelResponder{
		model:      m,
		prompt:     prompt,
		maxHistory: maxHistory,
		locker:     checkpoint.NewLocker(),
		history:    make(map[core.CheckpointKey][]core.Content),
	}
}

// Respond implements Responder.
func (r *ModelResponder) Respond(ctx context.Context, key core.CheckpointKey, message string) (string, error) {
	unlock, err := r.locker.Lock(ctx, key)
	if err != nil {
		return "", err
	}
	defer unlock()

	user := core.NewTextContent(core.RoleUser, message)

	r.mu.Lock()
	contents := append(cloneContents(r.history[key]), user)
	r.mu.Unlock()

	resp, err := model.Collect(ctx, r.model, model.Request{Instructions: r.prompt, Contents: contents})
	if err != nil {
		return "", fmt.Errorf("%w: respond: %v", core.ErrExternalService, err)
	}

	reply := resp.Content.Text()

	r.mu.Lock()
	h := append(r.history[key], user, core.NewTextContent(core.RoleAssistant, reply))
	if len(h) > r.maxHistory {
		h = h[len(h)-r.maxHistory:]
	}
	r.history[key] = h
	r.mu.Unlock()

	return reply, nil
}

// History returns a copy of the buffer kept for key.
func (r *ModelResponder) History(key core.CheckpointKey) []core.Content {
	r.mu.Lock()
	defer r.mu.Unlock()

	return cloneContents(r.history[key])
}

func cloneContents(in []core.Content) []core.Content {
	out := make([]core.Content, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}

	return out
}
