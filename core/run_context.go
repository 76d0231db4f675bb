package core

import (
	"context"

	"github.com/hupe1980/recallmesh/logging"
)

// RunContext carries execution state & helpers for one conversation turn.
// It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (owner, thread, RunID)
//   - The working ConversationState (a private copy of the checkpoint)
//   - The MemoryStore used by memory tools
//   - A RoundLimiter bounding AGENT/TOOLS iterations
//
// The working state is owned by the turn; it is only written back to the
// checkpoint store once the turn completes without a fatal error.
type RunContext struct {
	Context     context.Context
	Key         CheckpointKey
	RunID       string
	State       *ConversationState
	MemoryStore MemoryStore
	Limiter     *RoundLimiter

	*loggerAdapter
}

// NewRunContext constructs a RunContext for a turn.
func NewRunContext(
	ctx context.Context,
	key CheckpointKey,
	runID string,
	state *ConversationState,
	memoryStore MemoryStore,
	maxRounds int,
	logger logging.Logger,
) *RunContext {
	if state == nil {
		state = NewConversationState()
	}

	return &RunContext{
		Context:       ctx,
		Key:           key,
		RunID:         runID,
		State:         state,
		MemoryStore:   memoryStore,
		Limiter:       NewRoundLimiter(maxRounds),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// OwnerID returns the owner of the turn.
func (rc *RunContext) OwnerID() string { return rc.Key.OwnerID }

// ThreadID returns the thread of the turn.
func (rc *RunContext) ThreadID() string { return rc.Key.ThreadID }

// Err reports the cancellation state of the turn context.
func (rc *RunContext) Err() error { return rc.Context.Err() }
