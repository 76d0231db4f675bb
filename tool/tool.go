// Package tool implements the capabilities the agent may invoke during a
// turn: structured functions with schema validated arguments, consistent
// error codes and descriptions that guide the model.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/internal/util"
)

// Tool defines a capability the model can request by name.
//
// Implementations receive a ToolContext carrying the caller identity, the
// owner scoped memory operations and the per-call deadline. Tools must be
// safe for concurrent use; the executor runs independent calls in parallel.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description returns the text shown to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected input.
	Parameters() map[string]any

	// RequiresOwner reports whether the tool acts on owner scoped data.
	// Calls lacking an owner are rejected before the tool runs.
	RequiresOwner() bool

	// Call executes the tool with validated arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeExecution         = "EXECUTION_ERROR"
	CodeExternalService   = "EXTERNAL_SERVICE_ERROR"
	CodeUnknownCapability = "UNKNOWN_CAPABILITY"
	CodeOwnerMismatch     = "OWNER_MISMATCH"
	CodeStorage           = "STORAGE_UNAVAILABLE"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`                 // Underlying cause
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the cause so errors.Is matches core sentinels.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// WrapError converts err into a *ToolError for tool, deriving the code from
// the core error taxonomy. Existing ToolErrors are returned unchanged.
func WrapError(tool string, err error) *ToolError {
	if err == nil {
		return nil
	}

	var te *ToolError
	if errors.As(err, &te) {
		return te
	}

	return &ToolError{Tool: tool, Message: err.Error(), Code: codeFor(err), Err: err}
}

// ErrUnknownTool builds the error returned when a call names an unregistered tool.
func ErrUnknownTool(name string) *ToolError {
	return &ToolError{
		Tool:    name,
		Message: fmt.Sprintf("tool %q is not available", name),
		Code:    CodeUnknownCapability,
		Err:     core.ErrUnknownCapability,
	}
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, core.ErrOwnerMismatch):
		return CodeOwnerMismatch
	case errors.Is(err, core.ErrStorageUnavailable):
		return CodeStorage
	case errors.Is(err, core.ErrExternalService):
		return CodeExternalService
	case errors.Is(err, core.ErrUnknownCapability):
		return CodeUnknownCapability
	default:
		return CodeExecution
	}
}
