package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/internal/util"
	"github.com/hupe1980/recallmesh/logging"
	"github.com/hupe1980/recallmesh/memory"
	"github.com/hupe1980/recallmesh/memory/embedder/hash"
	"github.com/hupe1980/recallmesh/search"
)

func newToolContext(t *testing.T, owner string, store core.MemoryStore) *core.ToolContext {
	t.Helper()

	key := core.CheckpointKey{OwnerID: owner, ThreadID: "t1"}
	rc := core.NewRunContext(context.Background(), key, "run-1", nil, store, 4, logging.NoOpLogger{})

	return core.NewToolContext(rc, "fc-1")
}

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.ElementsMatch(t, []string{"a"}, schema["required"])
}

func TestBuiltinToolSchemas(t *testing.T) {
	tests := []struct {
		tool  Tool
		field string
	}{
		{NewSaveMemoryTool(), "memory"},
		{NewSearchMemoriesTool(0), "query"},
		{NewWebSearchTool(search.SearcherFunc(nil)), "query"},
	}

	for _, tt := range tests {
		t.Run(tt.tool.Name(), func(t *testing.T) {
			schema := tt.tool.Parameters()
			assert.Equal(t, "object", schema["type"])
			assert.Equal(t, []string{tt.field}, schema["required"])

			props := schema["properties"].(map[string]any)
			require.Len(t, props, 1)
			prop := props[tt.field].(map[string]any)
			assert.Equal(t, "string", prop["type"])
			assert.NotEmpty(t, prop["description"])
		})
	}
}

func TestBuiltinTools_RejectMissingArgument(t *testing.T) {
	store := memory.NewInMemoryStore(hash.New())

	_, err := NewSaveMemoryTool().Call(newToolContext(t, "u1", store), map[string]any{"text": "x"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Equal(t, 0, store.Len("u1"))
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(newToolContext(t, "", nil), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
	assert.False(t, sumTool.RequiresOwner())
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
		"required":   []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(newToolContext(t, "u1", nil), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"plain", errors.New("boom"), CodeExecution},
		{"external", core.ErrExternalService, CodeExternalService},
		{"storage", core.ErrStorageUnavailable, CodeStorage},
		{"custom", NewToolError("x", "custom", "E123"), "E123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := NewFunctionTool("fail", "Fails", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
				return nil, tt.err
			})

			_, err := ft.Call(newToolContext(t, "u1", nil), map[string]any{})
			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, tt.code, toolErr.Code)
		})
	}
}

func TestFunctionTool_OwnerRequired(t *testing.T) {
	called := false
	ft := NewFunctionTool("owned", "Owned", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		called = true
		return nil, nil
	}, func(o *FunctionOptions) { o.RequiresOwner = true })

	_, err := ft.Call(newToolContext(t, "", nil), map[string]any{})
	require.ErrorIs(t, err, core.ErrOwnerMismatch)
	assert.True(t, core.IsFatal(err))
	assert.False(t, called)
}

// -------------------- Memory Tools --------------------

func TestMemoryTools(t *testing.T) {
	store := memory.NewInMemoryStore(hash.New())
	save := NewSaveMemoryTool()
	searchTool := NewSearchMemoriesTool(0)

	empty, err := searchTool.Call(newToolContext(t, "u1", store), map[string]any{"query": "seat"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, empty)

	for _, m := range []string{"prefers aisle seats", "likes ramen", "lives in Lisbon", "has a dog"} {
		out, err := save.Call(newToolContext(t, "u1", store), map[string]any{"memory": m})
		require.NoError(t, err)
		assert.Equal(t, m, out)
	}

	res, err := searchTool.Call(newToolContext(t, "u1", store), map[string]any{"query": "aisle seats"})
	require.NoError(t, err)
	contents := res.([]string)
	assert.Len(t, contents, DefaultSearchK)
	assert.Equal(t, "prefers aisle seats", contents[0])

	other, err := searchTool.Call(newToolContext(t, "u2", store), map[string]any{"query": "aisle seats"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryTools_RequireOwner(t *testing.T) {
	store := memory.NewInMemoryStore(hash.New())

	_, err := NewSaveMemoryTool().Call(newToolContext(t, "", store), map[string]any{"memory": "x"})
	require.ErrorIs(t, err, core.ErrOwnerMismatch)
	assert.Equal(t, 0, store.Len(""))
}

// -------------------- Web Search --------------------

func TestWebSearch(t *testing.T) {
	s := search.SearcherFunc(func(_ context.Context, query string, n int) ([]search.Result, error) {
		assert.Equal(t, 1, n)
		return []search.Result{{Title: "a", Content: query}, {Title: "b"}}, nil
	})

	out, err := NewWebSearchTool(s).Call(newToolContext(t, "", nil), map[string]any{"query": "q"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestWebSearch_Failure(t *testing.T) {
	s := search.SearcherFunc(func(context.Context, string, int) ([]search.Result, error) {
		return nil, errors.New("connection refused")
	})

	_, err := NewWebSearchTool(s).Call(newToolContext(t, "", nil), map[string]any{"query": "q"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExternalService, toolErr.Code)
	assert.False(t, core.IsFatal(err))
}

// -------------------- Registry --------------------

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewSaveMemoryTool(), NewSearchMemoriesTool(3))

	require.Error(t, r.Register(NewSaveMemoryTool()))
	assert.Equal(t, []string{SaveMemoryName, SearchMemoriesName}, r.Names())

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, SaveMemoryName, defs[0].Function.Name)

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")

	unknown := ErrUnknownTool("nope")
	assert.ErrorIs(t, unknown, core.ErrUnknownCapability)
	assert.Equal(t, CodeUnknownCapability, unknown.Code)
}
