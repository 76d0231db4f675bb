package model

import "github.com/hupe1980/recallmesh/core"

// Turn is the tagged result of one model step. It is either an Answer
// (terminal text) or ToolRequests (one or more function calls to execute).
type Turn interface {
	isTurn()
	// Content renders the turn as the assistant message appended to the log.
	Content() core.Content
}

// Answer is a final text reply.
type Answer struct {
	Text string
}

func (Answer) isTurn() {}

// Content implements Turn.
func (a Answer) Content() core.Content {
	return core.NewTextContent(core.RoleAssistant, a.Text)
}

// ToolRequests asks the graph to execute Calls, in order. Text carries any
// commentary the model emitted alongside the calls.
type ToolRequests struct {
	Text  string
	Calls []core.FunctionCall
}

func (ToolRequests) isTurn() {}

// Content implements Turn.
func (t ToolRequests) Content() core.Content {
	parts := make([]core.Part, 0, len(t.Calls)+1)
	if t.Text != "" {
		parts = append(parts, core.TextPart{Text: t.Text})
	}

	for _, fc := range t.Calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}

	return core.Content{Role: core.RoleAssistant, Parts: parts}
}

// TurnOf classifies provider content: any function call makes it ToolRequests.
func TurnOf(c core.Content) Turn {
	if calls := c.FunctionCalls(); len(calls) > 0 {
		return ToolRequests{Text: c.Text(), Calls: calls}
	}

	return Answer{Text: c.Text()}
}
