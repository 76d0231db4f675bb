package tool

import (
	"github.com/hupe1980/recallmesh/core"
)

// Memory tool names.
const (
	SaveMemoryName     = "save_memory"
	SearchMemoriesName = "search_memories"
)

// DefaultSearchK is the number of memories returned by search_memories.
const DefaultSearchK = 3

// SaveMemoryArgs describes the arguments of save_memory.
type SaveMemoryArgs struct {
	Memory string `json:"memory" description:"The fact about the user to remember."`
}

// SearchMemoriesArgs describes the arguments of search_memories.
type SearchMemoriesArgs struct {
	Query string `json:"query" description:"What to look for in the user's memories."`
}

// NewSaveMemoryTool returns the tool that appends a memory for the caller's
// owner. The stored text is echoed back as the result.
func NewSaveMemoryTool() *FunctionTool {
	return NewFunctionToolFromStruct(
		SaveMemoryName,
		"Save memory to vectorstore for later semantic retrieval.",
		SaveMemoryArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			content, _ := args["memory"].(string)

			if _, err := tc.SaveMemory(content); err != nil {
				return nil, err
			}

			return content, nil
		},
		func(o *FunctionOptions) { o.RequiresOwner = true },
	)
}

// NewSearchMemoriesTool returns the tool that searches the caller's memories.
// It returns at most k contents (DefaultSearchK when k <= 0) and an empty list
// when nothing has been saved yet.
func NewSearchMemoriesTool(k int) *FunctionTool {
	if k <= 0 {
		k = DefaultSearchK
	}

	return NewFunctionToolFromStruct(
		SearchMemoriesName,
		"Search for relevant memories.",
		SearchMemoriesArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			results, err := tc.SearchMemory(query, k)
			if err != nil {
				return nil, err
			}

			return core.Contents(results), nil
		},
		func(o *FunctionOptions) { o.RequiresOwner = true },
	)
}
