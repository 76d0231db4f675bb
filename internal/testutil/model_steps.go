package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/model"
)

// AnswerStep returns a step answering with text.
func AnswerStep(text string) model.Step {
	return model.Step{Turn: model.Answer{Text: text}}
}

// ToolStep returns a step requesting one call of name with args.
func ToolStep(id, name string, args map[string]any) model.Step {
	return model.Step{Turn: model.ToolRequests{Calls: []core.FunctionCall{Call(id, name, args)}}}
}

// Call builds a function call with JSON encoded args.
func Call(id, name string, args map[string]any) core.FunctionCall {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}

	return core.FunctionCall{ID: id, Name: name, Arguments: string(raw)}
}

// AlwaysToolModel returns a model that requests name on every call.
func AlwaysToolModel(name string, args map[string]any) *model.ScriptedModel {
	var n atomic.Int64

	return model.NewFuncModel(func(model.Request) model.Step {
		return ToolStep(fmt.Sprintf("call-%d", n.Add(1)), name, args)
	})
}

// MemoryAwareModel mimics a memory-using assistant deterministically:
//   - "Remember that ..." triggers save_memory with the remainder
//   - a question about a seat answers from the recall block
//   - "search the web for ..." triggers web_search
//   - after a tool result it acknowledges, apologizing when the tool failed
//   - anything else is echoed
func MemoryAwareModel() *model.ScriptedModel {
	var n atomic.Int64

	return model.NewFuncModel(func(req model.Request) model.Step {
		if len(req.Contents) == 0 {
			return AnswerStep("Hello!")
		}

		last := req.Contents[len(req.Contents)-1]

		if last.Role == core.RoleTool {
			for _, fr := range last.FunctionResponses() {
				if fr.Error != "" {
					return AnswerStep("Sorry, I couldn't complete that right now: " + fr.Error)
				}

				if fr.Name != "save_memory" {
					return AnswerStep("Here is what I found: " + fr.Text())
				}
			}

			return AnswerStep("Got it, I'll remember that.")
		}

		text := last.Text()
		lower := strings.ToLower(text)
		id := fmt.Sprintf("call-%d", n.Add(1))

		switch {
		case strings.HasPrefix(lower, "remember that "):
			fact := strings.TrimSuffix(text[len("remember that "):], ".")
			return ToolStep(id, "save_memory", map[string]any{"memory": fact})
		case strings.HasPrefix(lower, "search the web for "):
			return ToolStep(id, "web_search", map[string]any{"query": text[len("search the web for "):]})
		case strings.Contains(lower, "seat"):
			if recall := recallBlock(req.Instructions); strings.Contains(strings.ToLower(recall), "aisle") {
				return AnswerStep("You prefer aisle seats.")
			}

			return AnswerStep("I don't know your seat preference yet.")
		default:
			return AnswerStep("You said: " + text)
		}
	})
}

func recallBlock(instructions string) string {
	start := strings.Index(instructions, "<recall_memory>")
	end := strings.Index(instructions, "</recall_memory>")

	if start < 0 || end < start {
		return ""
	}

	return instructions[start:end]
}
