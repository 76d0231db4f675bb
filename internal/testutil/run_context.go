package testutil

import (
	"context"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/logging"
)

// NewRunContext builds a run context for owner/thread over state.
func NewRunContext(ctx context.Context, owner, thread string, state *core.ConversationState, store core.MemoryStore, maxRounds int) *core.RunContext {
	return core.NewRunContext(ctx, core.CheckpointKey{OwnerID: owner, ThreadID: thread}, "run-test", state, store, maxRounds, logging.NoOpLogger{})
}
