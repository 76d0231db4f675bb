package tool

import (
	"fmt"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/search"
)

// WebSearchName is the name of the web search tool.
const WebSearchName = "web_search"

// WebSearchArgs describes the arguments of web_search.
type WebSearchArgs struct {
	Query string `json:"query" description:"The search query."`
}

// NewWebSearchTool returns a tool delegating to searcher for a single result.
// Failures surface as EXTERNAL_SERVICE_ERROR tool errors.
func NewWebSearchTool(searcher search.Searcher) *FunctionTool {
	return NewFunctionToolFromStruct(
		WebSearchName,
		"Search the web for current information. Returns the single most relevant result.",
		WebSearchArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			results, err := searcher.Search(tc.Context(), query, 1)
			if err != nil {
				if ctxErr := tc.Context().Err(); ctxErr != nil {
					return nil, fmt.Errorf("%w: web search: %v", core.ErrExternalService, ctxErr)
				}

				return nil, fmt.Errorf("%w: web search: %v", core.ErrExternalService, err)
			}

			if len(results) > 1 {
				results = results[:1]
			}

			if results == nil {
				results = []search.Result{}
			}

			return results, nil
		},
	)
}
