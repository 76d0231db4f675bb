package testutil

import (
	"github.com/hupe1980/recallmesh/core"
)

// StateBuilder helps construct conversation states with fluent chaining.
// Example:
//
//	state := NewStateBuilder().User("hi").Assistant("hello").Build()
type StateBuilder struct {
	messages []core.Content
	recall   []string
}

// NewStateBuilder creates an empty builder.
func NewStateBuilder() *StateBuilder { return &StateBuilder{} }

// User appends a user message (chainable).
func (b *StateBuilder) User(text string) *StateBuilder {
	b.messages = append(b.messages, core.NewTextContent(core.RoleUser, text))
	return b
}

// Assistant appends an assistant text message (chainable).
func (b *StateBuilder) Assistant(text string) *StateBuilder {
	b.messages = append(b.messages, core.NewTextContent(core.RoleAssistant, text))
	return b
}

// ToolCall appends an assistant message requesting one function call (chainable).
func (b *StateBuilder) ToolCall(id, name, args string) *StateBuilder {
	b.messages = append(b.messages, core.Content{
		Role:  core.RoleAssistant,
		Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}}},
	})

	return b
}

// ToolResult appends a tool-result message (chainable).
func (b *StateBuilder) ToolResult(id, name string, response any) *StateBuilder {
	b.messages = append(b.messages, core.NewFunctionResponseContent(core.FunctionResponse{ID: id, Name: name, Response: response}))
	return b
}

// Recall sets transient recall memories (chainable).
func (b *StateBuilder) Recall(memories ...string) *StateBuilder {
	b.recall = append(b.recall, memories...)
	return b
}

// Build returns a new state holding copies of the accumulated messages.
func (b *StateBuilder) Build() *core.ConversationState {
	s := core.NewConversationState()
	for _, m := range b.messages {
		s.Append(m.Clone())
	}

	s.RecallMemories = append([]string(nil), b.recall...)

	return s
}
