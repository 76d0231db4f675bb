package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/internal/util"
	"github.com/hupe1980/recallmesh/logging"
	"github.com/hupe1980/recallmesh/model"
	"github.com/hupe1980/recallmesh/tool"
	"github.com/hupe1980/recallmesh/window"
)

// Node names a state of the graph.
type Node string

// Graph states.
const (
	NodeLoadMemories Node = "load_memories"
	NodeAgent        Node = "agent"
	NodeTools        Node = "tools"
	NodeTerminal     Node = "__end__"
)

// Update reports the completion of one node. Messages holds what the node
// appended to the conversation.
type Update struct {
	Node           Node
	Messages       []core.Content
	RecallMemories []string
	Round          int
}

// Observer receives node updates synchronously, in execution order.
type Observer func(Update)

// Options configure a Graph.
type Options struct {
	// Instruction is the system prompt template; {{ .recall_memories }}
	// receives the recall block.
	Instruction string
	// MaxRounds sizes the round limiter of runs that carry no bounded
	// limiter of their own (default 8).
	MaxRounds int
	// CallTimeout bounds each model and tool call (default 60s, <0 disables).
	CallTimeout time.Duration
	// RecallK is the number of memories loaded at the top of the turn.
	RecallK int
	// MaxParallel bounds concurrent tool calls (0 = unbounded).
	MaxParallel int
	// FallbackMessage ends a turn that exhausted MaxRounds.
	FallbackMessage string
	// DegradedMessage replaces the answer when the model call fails.
	DegradedMessage string
	// Observer receives node updates.
	Observer Observer
}

// Result summarizes one run.
type Result struct {
	Reply       string // Text of the final assistant message
	AgentVisits int
	ToolRounds  int
	Degraded    bool // The model failed and DegradedMessage was used
	Exhausted   bool // MaxRounds was hit and FallbackMessage was used
}

// Graph is the compiled orchestration state machine. It is immutable after
// construction and safe to share across concurrent turns.
type Graph struct {
	model    model.Model
	tools    *tool.Registry
	trimmer  *window.Trimmer
	executor *Executor
	opts     Options
}

// New compiles a graph around m, tools and trimmer (a default rune based
// trimmer if nil).
func New(m model.Model, tools *tool.Registry, trimmer *window.Trimmer, optFns ...func(o *Options)) *Graph {
	opts := Options{
		Instruction:     DefaultInstruction,
		MaxRounds:       8,
		CallTimeout:     60 * time.Second,
		RecallK:         tool.DefaultSearchK,
		FallbackMessage: DefaultFallbackMessage,
		DegradedMessage: DefaultDegradedMessage,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 8
	}

	if opts.RecallK <= 0 {
		opts.RecallK = tool.DefaultSearchK
	}

	if opts.CallTimeout < 0 {
		opts.CallTimeout = 0
	}

	if tools == nil {
		tools = tool.NewRegistry()
	}

	if trimmer == nil {
		trimmer = window.NewTrimmer(nil)
	}

	return &Graph{
		model:    m,
		tools:    tools,
		trimmer:  trimmer,
		executor: NewExecutor(tools, ExecutorConfig{MaxParallel: opts.MaxParallel, CallTimeout: opts.CallTimeout}),
		opts:     opts,
	}
}

// MaxRounds returns the configured round limit.
func (g *Graph) MaxRounds() int { return g.opts.MaxRounds }

// Run executes the graph over runCtx.State, which must already end with the
// new user message. The state is mutated in place; on error the caller must
// discard it.
func (g *Graph) Run(runCtx *core.RunContext) (Result, error) {
	var res Result

	limiter := g.limiter(runCtx)

	if err := g.loadMemories(runCtx); err != nil {
		return res, err
	}

	for {
		if err := runCtx.Err(); err != nil {
			return res, err
		}

		res.AgentVisits++

		turn, err := g.agent(runCtx)
		if err != nil {
			if runCtx.Err() != nil || core.IsFatal(err) {
				return res, err
			}

			runCtx.LogWarn("graph.agent.degraded", "error", err.Error())

			msg := core.NewTextContent(core.RoleAssistant, g.opts.DegradedMessage)
			runCtx.State.Append(msg)
			g.observe(Update{Node: NodeAgent, Messages: []core.Content{msg}, Round: res.ToolRounds})

			res.Degraded = true
			res.Reply = g.opts.DegradedMessage

			return g.terminal(runCtx, res), nil
		}

		requests, ok := turn.(model.ToolRequests)
		if !ok {
			res.Reply = turn.Content().Text()
			return g.terminal(runCtx, res), nil
		}

		if err := limiter.Increment(); err != nil {
			g.exhaust(runCtx, requests.Calls, err)

			res.Exhausted = true
			res.Reply = g.opts.FallbackMessage

			return g.terminal(runCtx, res), nil
		}

		res.ToolRounds++

		if err := g.runTools(runCtx, requests.Calls, res.ToolRounds); err != nil {
			return res, err
		}
	}
}

// limiter returns the run's round limiter. A run without a bounded limiter
// gets one sized to the graph's MaxRounds so every turn terminates.
func (g *Graph) limiter(runCtx *core.RunContext) *core.RoundLimiter {
	if runCtx.Limiter == nil || runCtx.Limiter.Max() <= 0 {
		runCtx.Limiter = core.NewRoundLimiter(g.opts.MaxRounds)
	}

	return runCtx.Limiter
}

// loadMemories fills State.RecallMemories from the trimmed conversation.
func (g *Graph) loadMemories(runCtx *core.RunContext) error {
	runCtx.LogDebug("graph.node.enter", "node", NodeLoadMemories)

	runCtx.State.RecallMemories = []string{}

	if runCtx.MemoryStore != nil {
		query := g.trimmer.Context(runCtx.State.Messages)
		tc := core.NewToolContext(runCtx, "load_memories")

		results, err := tc.SearchMemory(query, g.opts.RecallK)

		switch {
		case err == nil:
			runCtx.State.RecallMemories = core.Contents(results)
		case core.IsFatal(err) || runCtx.Err() != nil:
			return err
		default:
			runCtx.LogWarn("graph.recall.failed", "error", err.Error())
		}
	}

	runCtx.LogDebug("graph.node.exit", "node", NodeLoadMemories, "recalled", len(runCtx.State.RecallMemories))
	g.observe(Update{Node: NodeLoadMemories, RecallMemories: append([]string(nil), runCtx.State.RecallMemories...)})

	return nil
}

// agent invokes the model once and appends its turn to the conversation.
func (g *Graph) agent(runCtx *core.RunContext) (model.Turn, error) {
	runCtx.LogDebug("graph.node.enter", "node", NodeAgent, "messages", runCtx.State.Len())

	instructions, err := util.RenderTemplate(g.opts.Instruction, map[string]any{
		"recall_memories": RecallBlock(runCtx.State.RecallMemories),
	})
	if err != nil {
		return nil, fmt.Errorf("render instruction: %w", err)
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     runCtx.State.Clone().Messages,
		Tools:        g.tools.Definitions(),
	}

	ctx, cancel := runCtx.Context, context.CancelFunc(func() {})
	if g.opts.CallTimeout > 0 {
		ctx, cancel = context.WithTimeout(runCtx.Context, g.opts.CallTimeout)
	}
	defer cancel()

	start := time.Now()
	resp, err := model.Collect(ctx, g.model, req)

	if err != nil {
		logModelCall(runCtx, g.model.Info().Name, 0, time.Since(start), err)

		if runCtx.Err() != nil {
			return nil, runCtx.Err()
		}

		if errors.Is(err, core.ErrExternalService) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: model call: %v", core.ErrExternalService, err)
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}

	logModelCall(runCtx, g.model.Info().Name, tokens, time.Since(start), nil)

	turn := model.TurnOf(resp.Content)
	msg := turn.Content()
	runCtx.State.Append(msg)

	g.observe(Update{Node: NodeAgent, Messages: []core.Content{msg.Clone()}})

	return turn, nil
}

// runTools executes calls and appends one tool-result message per call in
// request order. Fatal tool errors abort the run.
func (g *Graph) runTools(runCtx *core.RunContext, calls []core.FunctionCall, round int) error {
	runCtx.LogDebug("graph.node.enter", "node", NodeTools, "calls", len(calls), "round", round)

	outcomes := g.executor.Execute(runCtx, calls)

	if err := runCtx.Err(); err != nil {
		return err
	}

	appended := make([]core.Content, 0, len(outcomes))

	for _, o := range outcomes {
		if o.Err != nil && core.IsFatal(o.Err) {
			runCtx.LogError("graph.tool.fatal", "tool", o.Call.Name, "error", o.Err.Error())
			return o.Err
		}

		msg := core.NewFunctionResponseContent(o.Response())
		runCtx.State.Append(msg)
		appended = append(appended, msg)
	}

	g.observe(Update{Node: NodeTools, Messages: appended, Round: round})

	return nil
}

// exhaust answers the pending calls with the round limit error and appends
// the fallback message so the log stays well formed for the next turn.
func (g *Graph) exhaust(runCtx *core.RunContext, calls []core.FunctionCall, cause error) {
	runCtx.LogWarn("graph.rounds.exhausted", "max_rounds", runCtx.Limiter.Max(), "pending_calls", len(calls))

	appended := make([]core.Content, 0, len(calls)+1)

	for _, fc := range calls {
		msg := core.NewFunctionResponseContent(core.FunctionResponse{ID: fc.ID, Name: fc.Name, Error: cause.Error()})
		runCtx.State.Append(msg)
		appended = append(appended, msg)
	}

	fallback := core.NewTextContent(core.RoleAssistant, g.opts.FallbackMessage)
	runCtx.State.Append(fallback)
	appended = append(appended, fallback)

	g.observe(Update{Node: NodeTools, Messages: appended, Round: runCtx.Limiter.Max()})
}

func (g *Graph) terminal(runCtx *core.RunContext, res Result) Result {
	runCtx.LogInfo(
		"graph.run.complete",
		"agent_visits", res.AgentVisits,
		"tool_rounds", res.ToolRounds,
		"degraded", res.Degraded,
		"exhausted", res.Exhausted,
	)
	g.observe(Update{Node: NodeTerminal, Round: res.ToolRounds})

	return res
}

func (g *Graph) observe(u Update) {
	if g.opts.Observer != nil {
		g.opts.Observer(u)
	}
}

// logModelCall reports one model call, through the turn logger's helper
// when the run carries one.
func logModelCall(runCtx *core.RunContext, name string, tokens int, dur time.Duration, err error) {
	if tl, ok := runCtx.Logger().(*logging.TurnLogger); ok {
		tl.LogModelCall(name, tokens, dur, err)
		return
	}

	if err != nil {
		runCtx.LogWarn("model.call.failed", "model", name, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}

	runCtx.LogInfo("model.call.completed", "model", name, "token_count", tokens, "duration_ms", dur.Milliseconds())
}
