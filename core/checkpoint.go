package core

import (
	"context"
	"fmt"
)

// CheckpointKey identifies one conversation thread of one owner.
type CheckpointKey struct {
	OwnerID  string `json:"owner_id"`
	ThreadID string `json:"thread_id"`
}

// Validate rejects keys without an owner or thread.
func (k CheckpointKey) Validate() error {
	if k.OwnerID == "" {
		return fmt.Errorf("%w: owner id is required", ErrOwnerMismatch)
	}

	if k.ThreadID == "" {
		return fmt.Errorf("thread id is required")
	}

	return nil
}

// String renders owner/thread for logs.
func (k CheckpointKey) String() string { return k.OwnerID + "/" + k.ThreadID }

// CheckpointStore persists conversation state keyed by (owner, thread).
// Load reports found=false for a thread that was never saved. Save is an
// atomic overwrite; implementations must store a copy, never the caller's
// pointer.
type CheckpointStore interface {
	Load(ctx context.Context, key CheckpointKey) (state *ConversationState, found bool, err error)
	Save(ctx context.Context, key CheckpointKey, state *ConversationState) error
}
