package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/recallmesh/logging"
)

// ToolContext provides a constrained, auditable surface for tool / function
// implementations. It exposes the caller identity and the owner scoped memory
// operations, and carries the (possibly deadline bound) context for the call.
type ToolContext struct {
	ctx            context.Context
	runCtx         *RunContext
	functionCallID string

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext
// and unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		ctx:            runCtx.Context,
		runCtx:         runCtx,
		functionCallID: functionCallID,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// WithContext returns a copy bound to ctx, used to apply per-call deadlines.
func (tc *ToolContext) WithContext(ctx context.Context) *ToolContext {
	nc := *tc
	nc.ctx = ctx

	return &nc
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// OwnerID returns the owner the tool acts on behalf of.
func (tc *ToolContext) OwnerID() string { return tc.runCtx.OwnerID() }

// ThreadID returns the conversation thread of the invocation.
func (tc *ToolContext) ThreadID() string { return tc.runCtx.ThreadID() }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// SaveMemory appends content to the caller's memories. A missing owner is
// rejected before the store is touched.
func (tc *ToolContext) SaveMemory(content string) (string, error) {
	if tc.OwnerID() == "" {
		return "", fmt.Errorf("%w: owner id needs to be provided to save a memory", ErrOwnerMismatch)
	}

	if tc.runCtx.MemoryStore == nil {
		return "", fmt.Errorf("%w: memory store not configured", ErrStorageUnavailable)
	}

	return tc.runCtx.MemoryStore.Save(tc.ctx, tc.OwnerID(), content)
}

// SearchMemory performs an owner scoped recall query.
func (tc *ToolContext) SearchMemory(query string, k int) ([]SearchResult, error) {
	if tc.OwnerID() == "" {
		return nil, fmt.Errorf("%w: owner id needs to be provided to search memories", ErrOwnerMismatch)
	}

	if tc.runCtx.MemoryStore == nil {
		return nil, fmt.Errorf("%w: memory store not configured", ErrStorageUnavailable)
	}

	results, err := tc.runCtx.MemoryStore.Search(tc.ctx, tc.OwnerID(), query, k)
	if err != nil {
		return nil, err
	}

	return FilterOwner(results, tc.OwnerID()), nil
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.runCtx == nil || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}
