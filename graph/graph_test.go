package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/internal/testutil"
	"github.com/hupe1980/recallmesh/logging"
	"github.com/hupe1980/recallmesh/memory"
	"github.com/hupe1980/recallmesh/memory/embedder/hash"
	"github.com/hupe1980/recallmesh/model"
	"github.com/hupe1980/recallmesh/search"
	"github.com/hupe1980/recallmesh/tool"
)

func registry(searcher search.Searcher) *tool.Registry {
	if searcher == nil {
		searcher = &testutil.FakeSearcher{Results: []search.Result{{Title: "r", Content: "result"}}}
	}

	return tool.NewRegistry(
		tool.NewSaveMemoryTool(),
		tool.NewSearchMemoriesTool(tool.DefaultSearchK),
		tool.NewWebSearchTool(searcher),
	)
}

func runTurn(t *testing.T, g *Graph, owner string, store core.MemoryStore, state *core.ConversationState, msg string) (Result, *core.ConversationState, error) {
	t.Helper()

	state.Append(core.NewTextContent(core.RoleUser, msg))
	rc := testutil.NewRunContext(context.Background(), owner, "t1", state, store, g.MaxRounds())
	res, err := g.Run(rc)

	return res, state, err
}

func TestGraph_AnswerWithoutTools(t *testing.T) {
	m := model.NewScriptedModel(testutil.AnswerStep("hello there"))
	g := New(m, registry(nil), nil)

	res, state, err := runTurn(t, g, "u1", memory.NewInMemoryStore(hash.New()), core.NewConversationState(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Reply)
	assert.Equal(t, 1, res.AgentVisits)
	assert.Equal(t, 0, res.ToolRounds)
	assert.Equal(t, []string{core.RoleUser, core.RoleAssistant}, state.Roles())

	req := m.Requests()[0]
	assert.Contains(t, req.Instructions, "Memory Usage Guidelines")
	assert.Contains(t, req.Instructions, "<recall_memory>\n\n</recall_memory>")
	assert.Len(t, req.Tools, 3)
}

func TestGraph_FirstTurnSavesMemory(t *testing.T) {
	store := memory.NewInMemoryStore(hash.New())
	g := New(testutil.MemoryAwareModel(), registry(nil), nil)

	_, state, err := runTurn(t, g, "u1", store, core.NewConversationState(), "Remember that I prefer aisle seats.")
	require.NoError(t, err)

	assert.Equal(t, []string{core.RoleUser, core.RoleAssistant, core.RoleTool, core.RoleAssistant}, state.Roles())
	assert.Equal(t, "save_memory", state.Messages[1].FunctionCalls()[0].Name)
	assert.Equal(t, "I prefer aisle seats", state.Messages[2].FunctionResponses()[0].Text())
	assert.Equal(t, 1, store.Len("u1"))
}

func TestGraph_LogsCallsThroughTurnLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := logging.DefaultLoggerConfig()
	cfg.Output = buf
	logger := logging.NewLogger(cfg).WithTurn("u1", "t1", "run-1")

	state := core.NewConversationState()
	state.Append(core.NewTextContent(core.RoleUser, "Remember that I prefer aisle seats."))
	key := core.CheckpointKey{OwnerID: "u1", ThreadID: "t1"}
	rc := core.NewRunContext(context.Background(), key, "run-1", state, memory.NewInMemoryStore(hash.New()), 8, logger)

	g := New(testutil.MemoryAwareModel(), registry(nil), nil)
	_, err := g.Run(rc)
	require.NoError(t, err)

	var events []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		ev := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		if ev["msg"] == "model.call.completed" || ev["msg"] == "tool.call.completed" {
			events = append(events, ev)
		}
	}

	require.Len(t, events, 3)
	assert.Equal(t, "model.call.completed", events[0]["msg"])
	assert.Equal(t, "tool.call.completed", events[1]["msg"])
	assert.Equal(t, tool.SaveMemoryName, events[1]["tool"])
	assert.Equal(t, true, events[1]["success"])
	assert.Equal(t, "model.call.completed", events[2]["msg"])

	for _, ev := range events {
		assert.Equal(t, "u1", ev["owner_id"])
		assert.Equal(t, "run-1", ev["run_id"])
	}
}

func TestGraph_RecallUsesOwnerMemories(t *testing.T) {
	store := memory.NewInMemoryStore(hash.New())
	g := New(testutil.MemoryAwareModel(), registry(nil), nil)

	_, state, err := runTurn(t, g, "u1", store, core.NewConversationState(), "Remember that I prefer aisle seats.")
	require.NoError(t, err)

	res, state, err := runTurn(t, g, "u1", store, state, "What seat do I prefer?")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(res.Reply), "aisle")
	assert.Contains(t, state.RecallMemories, "I prefer aisle seats")

	other, otherState, err := runTurn(t, g, "u2", store, core.NewConversationState(), "What seat do I prefer?")
	require.NoError(t, err)
	assert.Empty(t, otherState.RecallMemories)
	assert.NotContains(t, strings.ToLower(other.Reply), "aisle")
}

func TestGraph_RecallIsRecomputedEachTurn(t *testing.T) {
	g := New(model.NewScriptedModel(testutil.AnswerStep("ok")), registry(nil), nil)

	state := testutil.NewStateBuilder().Recall("stale memory").Build()
	_, state, err := runTurn(t, g, "u1", memory.NewInMemoryStore(hash.New()), state, "hi")
	require.NoError(t, err)
	assert.Empty(t, state.RecallMemories)
}

func TestGraph_TerminatesWithinNPlusOneVisits(t *testing.T) {
	for n := 0; n <= 4; n++ {
		steps := make([]model.Step, 0, n+1)
		for i := range n {
			steps = append(steps, testutil.ToolStep("c"+string(rune('a'+i)), tool.SearchMemoriesName, map[string]any{"query": "x"}))
		}
		steps = append(steps, testutil.AnswerStep("done"))

		m := model.NewScriptedModel(steps...)
		g := New(m, registry(nil), nil, func(o *Options) { o.MaxRounds = 8 })

		res, _, err := runTurn(t, g, "u1", memory.NewInMemoryStore(hash.New()), core.NewConversationState(), "go")
		require.NoError(t, err)
		assert.Equal(t, n+1, res.AgentVisits)
		assert.Equal(t, n, res.ToolRounds)
		assert.Equal(t, "done", res.Reply)
	}
}

func TestGraph_AlwaysToolModelHitsRoundLimit(t *testing.T) {
	m := testutil.AlwaysToolModel(tool.SearchMemoriesName, map[string]any{"query": "again"})
	g := New(m, registry(nil), nil, func(o *Options) { o.MaxRounds = 3 })

	res, state, err := runTurn(t, g, "u1", memory.NewInMemoryStore(hash.New()), core.NewConversationState(), "loop")
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 3, res.ToolRounds)
	assert.Equal(t, 4, res.AgentVisits)
	assert.Equal(t, DefaultFallbackMessage, res.Reply)

	last, _ := state.Last()
	assert.Equal(t, core.RoleAssistant, last.Role)
	assert.Equal(t, DefaultFallbackMessage, last.Text())

	// The final unanswered call still gets a result message.
	pending := state.Messages[len(state.Messages)-2]
	require.Equal(t, core.RoleTool, pending.Role)
	assert.Contains(t, pending.FunctionResponses()[0].Error, "max tool rounds exceeded")
}

func TestGraph_RunLimiterBoundsRounds(t *testing.T) {
	tests := []struct {
		name      string
		runRounds int
		want      int
	}{
		{"run limiter wins", 2, 2},
		{"unbounded run uses graph limit", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.AlwaysToolModel(tool.SearchMemoriesName, map[string]any{"query": "again"})
			g := New(m, registry(nil), nil, func(o *Options) { o.MaxRounds = 3 })

			state := core.NewConversationState()
			state.Append(core.NewTextContent(core.RoleUser, "loop"))
			rc := testutil.NewRunContext(context.Background(), "u1", "t1", state, memory.NewInMemoryStore(hash.New()), tt.runRounds)

			res, err := g.Run(rc)
			require.NoError(t, err)
			assert.True(t, res.Exhausted)
			assert.Equal(t, tt.want, res.ToolRounds)
			assert.Equal(t, tt.want+1, res.AgentVisits)
		})
	}
}

func TestGraph_ToolTimeoutDegrades(t *testing.T) {
	slow := &testutil.FakeSearcher{Delay: time.Second}
	g := New(testutil.MemoryAwareModel(), registry(slow), nil, func(o *Options) { o.CallTimeout = 20 * time.Millisecond })

	res, state, err := runTurn(t, g, "u1", memory.NewInMemoryStore(hash.New()), core.NewConversationState(), "search the web for lisbon weather")
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "Sorry")
	assert.Equal(t, core.RoleUser, state.Messages[0].Role)

	fr := state.Messages[2].FunctionResponses()[0]
	assert.Contains(t, fr.Error, tool.CodeExternalService)
}

func TestGraph_UnknownToolIsFolded(t *testing.T) {
	m := model.NewScriptedModel(
		testutil.ToolStep("c1", "does_not_exist", map[string]any{}),
		testutil.AnswerStep("recovered"),
	)
	g := New(m, registry(nil), nil)

	res, state, err := runTurn(t, g, "u1", nil, core.NewConversationState(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Reply)
	assert.Contains(t, state.Messages[2].FunctionResponses()[0].Error, tool.CodeUnknownCapability)
}

func TestGraph_BadArgumentsAreFolded(t *testing.T) {
	m := model.NewScriptedModel(
		model.Step{Turn: model.ToolRequests{Calls: []core.FunctionCall{{ID: "c1", Name: tool.SaveMemoryName, Arguments: "{not json"}}}},
		testutil.AnswerStep("recovered"),
	)
	g := New(m, registry(nil), nil)

	res, state, err := runTurn(t, g, "u1", memory.NewInMemoryStore(hash.New()), core.NewConversationState(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Reply)
	assert.Contains(t, state.Messages[2].FunctionResponses()[0].Error, tool.CodeValidation)
}

func TestGraph_ModelFailureDegrades(t *testing.T) {
	m := model.NewScriptedModel(model.Step{Err: errors.New("503 from provider")})
	g := New(m, registry(nil), nil)

	res, state, err := runTurn(t, g, "u1", nil, core.NewConversationState(), "hi")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, DefaultDegradedMessage, res.Reply)
	assert.Equal(t, []string{core.RoleUser, core.RoleAssistant}, state.Roles())
}

func TestGraph_ModelTimeoutDegrades(t *testing.T) {
	m := model.NewScriptedModel(model.Step{Turn: model.Answer{Text: "late"}, Delay: time.Second})
	g := New(m, registry(nil), nil, func(o *Options) { o.CallTimeout = 20 * time.Millisecond })

	res, _, err := runTurn(t, g, "u1", nil, core.NewConversationState(), "hi")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
}

func TestGraph_StorageOutageAborts(t *testing.T) {
	store := memory.NewInMemoryStore(hash.New())
	require.NoError(t, store.Close())

	g := New(testutil.MemoryAwareModel(), registry(nil), nil)

	_, _, err := runTurn(t, g, "u1", store, core.NewConversationState(), "hi")
	require.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestGraph_MissingOwnerAborts(t *testing.T) {
	g := New(testutil.MemoryAwareModel(), registry(nil), nil)

	_, _, err := runTurn(t, g, "", memory.NewInMemoryStore(hash.New()), core.NewConversationState(), "Remember that I like tea.")
	require.ErrorIs(t, err, core.ErrOwnerMismatch)
}

func TestGraph_Cancellation(t *testing.T) {
	m := model.NewScriptedModel(model.Step{Turn: model.Answer{Text: "late"}, Delay: time.Second})
	g := New(m, registry(nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	state := testutil.NewStateBuilder().User("hi").Build()
	rc := testutil.NewRunContext(ctx, "u1", "t1", state, nil, 8)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := g.Run(rc)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGraph_ParallelToolsPreserveOrder(t *testing.T) {
	var inFlight, peak atomic.Int32

	slowTool := func(name string, delay time.Duration) tool.Tool {
		return tool.NewFunctionTool(name, name, map[string]any{"type": "object"}, func(*core.ToolContext, map[string]any) (any, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(delay)
			return name, nil
		})
	}

	reg := tool.NewRegistry(slowTool("slow", 50*time.Millisecond), slowTool("fast", 25*time.Millisecond))
	m := model.NewScriptedModel(
		model.Step{Turn: model.ToolRequests{Calls: []core.FunctionCall{
			{ID: "a", Name: "slow"}, {ID: "b", Name: "fast"},
		}}},
		testutil.AnswerStep("done"),
	)

	res, state, err := runTurn(t, New(m, reg, nil), "u1", nil, core.NewConversationState(), "go")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Reply)
	assert.Equal(t, []string{core.RoleUser, core.RoleAssistant, core.RoleTool, core.RoleTool, core.RoleAssistant}, state.Roles())
	assert.Equal(t, "a", state.Messages[2].FunctionResponses()[0].ID)
	assert.Equal(t, "b", state.Messages[3].FunctionResponses()[0].ID)
	assert.Equal(t, int32(2), peak.Load())
}

func TestGraph_PanickingToolIsRecovered(t *testing.T) {
	boom := tool.NewFunctionTool("boom", "panics", map[string]any{"type": "object"}, func(*core.ToolContext, map[string]any) (any, error) {
		panic("kaboom")
	})
	m := model.NewScriptedModel(testutil.ToolStep("c1", "boom", nil), testutil.AnswerStep("fine"))

	res, state, err := runTurn(t, New(m, tool.NewRegistry(boom), nil), "u1", nil, core.NewConversationState(), "go")
	require.NoError(t, err)
	assert.Equal(t, "fine", res.Reply)
	assert.Contains(t, state.Messages[2].FunctionResponses()[0].Error, "kaboom")
}

func TestGraph_ObserverSeesNodesInOrder(t *testing.T) {
	var mu sync.Mutex
	var nodes []Node

	g := New(testutil.MemoryAwareModel(), registry(nil), nil, func(o *Options) {
		o.Observer = func(u Update) {
			mu.Lock()
			nodes = append(nodes, u.Node)
			mu.Unlock()
		}
	})

	_, _, err := runTurn(t, g, "u1", memory.NewInMemoryStore(hash.New()), core.NewConversationState(), "Remember that I like tea.")
	require.NoError(t, err)
	assert.Equal(t, []Node{NodeLoadMemories, NodeAgent, NodeTools, NodeAgent, NodeTerminal}, nodes)
}

func TestRecallBlock(t *testing.T) {
	assert.Equal(t, "<recall_memory>\na\nb\n</recall_memory>", RecallBlock([]string{"a", "b"}))
}
