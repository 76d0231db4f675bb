package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ model.Model = (*Model)(nil)

func TestBuildMessages_ToolResultsGoToUserTurn(t *testing.T) {
	contents := []core.Content{
		core.NewTextContent(core.RoleUser, "what's new?"),
		model.ToolRequests{Calls: []core.FunctionCall{
			{ID: "tu_1", Name: "web_search", Arguments: `{"query":"news"}`},
			{ID: "tu_2", Name: "search_memories", Arguments: `{"query":"news"}`},
		}}.Content(),
		core.NewFunctionResponseContent(core.FunctionResponse{ID: "tu_1", Name: "web_search", Error: "timeout"}),
		core.NewFunctionResponseContent(core.FunctionResponse{ID: "tu_2", Name: "search_memories", Response: []string{}}),
		core.NewTextContent(core.RoleAssistant, "Sorry, search is down."),
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 4)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 2, "both results merge into one user turn")
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "tu_1", msgs[2].Content[0].OfToolResult.ToolUseID)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
}

func TestSystemBlocks(t *testing.T) {
	req := model.Request{
		Instructions: "be helpful",
		Contents:     []core.Content{core.NewTextContent(core.RoleSystem, "extra")},
	}
	blocks := systemBlocks(req)
	require.Len(t, blocks, 2)
	assert.Equal(t, "be helpful", blocks[0].Text)
	assert.Equal(t, "extra", blocks[1].Text)
}

func TestBuildTools_CopiesSchema(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{Function: model.FunctionDefinition{
		Name:        "save_memory",
		Description: "Save memory",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"memory": map[string]any{"type": "string"}},
			"required":   []any{"memory"},
		},
	}}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "save_memory", tools[0].OfTool.Name)
	assert.Equal(t, []string{"memory"}, tools[0].OfTool.InputSchema.Required)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	assert.Equal(t, "anthropic", m.Info().Provider)
	assert.True(t, m.Info().SupportsTools)
}
