package core

import "errors"

// Error taxonomy. Callers match with errors.Is; implementations wrap with %w.
var (
	// ErrStorageUnavailable reports an unreachable memory or checkpoint store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrExternalService reports a failed or timed out model / search call.
	ErrExternalService = errors.New("external service error")
	// ErrUnknownCapability reports a tool name that is not registered.
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrOwnerMismatch reports a memory operation without a resolvable owner.
	ErrOwnerMismatch = errors.New("owner mismatch")
	// ErrMaxRoundsExceeded reports an exhausted agent/tool round budget.
	ErrMaxRoundsExceeded = errors.New("max tool rounds exceeded")
)

// IsFatal reports whether err must abort the whole turn. Fatal errors leave
// the persisted checkpoint untouched; every other failure is folded back into
// the conversation as a message.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrOwnerMismatch)
}
