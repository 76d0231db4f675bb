package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/logging"
	"github.com/hupe1980/recallmesh/tool"
)

// Outcome is the result of one executed function call.
type Outcome struct {
	Call     core.FunctionCall
	Result   any
	Err      error
	Duration time.Duration
}

// Response converts the outcome into the tool-result payload appended to the
// conversation.
func (o Outcome) Response() core.FunctionResponse {
	resp := core.FunctionResponse{ID: o.Call.ID, Name: o.Call.Name}
	if o.Err != nil {
		resp.Error = o.Err.Error()
		return resp
	}

	resp.Response = o.Result

	return resp
}

// ExecutorConfig configures the parallel executor.
type ExecutorConfig struct {
	MaxParallel int           // 0 or <1 => one goroutine per call
	CallTimeout time.Duration // 0 => no per-call deadline
}

// Executor runs a batch of function calls against a tool registry. It never
// panics, returns exactly one Outcome per call in request order and applies
// a per-call deadline.
//
// A tool that outlives its deadline is reported as timed out while its
// goroutine runs to completion in the background. Side effects it makes
// after that point are not rolled back, so tools with side effects must
// re-check their context before committing, as the memory stores do.
type Executor struct {
	tools *tool.Registry
	cfg   ExecutorConfig
}

// NewExecutor constructs an executor over tools.
func NewExecutor(tools *tool.Registry, cfg ExecutorConfig) *Executor {
	return &Executor{tools: tools, cfg: cfg}
}

// Execute runs calls, concurrently when more than one is requested.
func (e *Executor) Execute(runCtx *core.RunContext, calls []core.FunctionCall) []Outcome {
	n := len(calls)
	if n == 0 {
		return nil
	}

	outcomes := make([]Outcome, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		outcomes[0] = e.executeOne(runCtx, calls[0])
		return outcomes
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup

	sem := make(chan struct{}, maxPar)
	batchStart := time.Now()

	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			outcomes[idx] = e.executeOne(runCtx, fc)
		}(i, calls[i])
	}

	wg.Wait()

	runCtx.LogDebug(
		"graph.tools.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return outcomes
}

func (e *Executor) executeOne(runCtx *core.RunContext, fc core.FunctionCall) Outcome {
	start := time.Now()

	if err := runCtx.Err(); err != nil {
		return Outcome{Call: fc, Err: err}
	}

	ctx, cancel := runCtx.Context, context.CancelFunc(func() {})
	if e.cfg.CallTimeout > 0 {
		ctx, cancel = context.WithTimeout(runCtx.Context, e.cfg.CallTimeout)
	}
	defer cancel()

	toolCtx := core.NewToolContext(runCtx, fc.ID).WithContext(ctx)

	type callResult struct {
		result any
		err    error
	}

	done := make(chan callResult, 1)

	go func() {
		var res callResult

		defer func() {
			if r := recover(); r != nil {
				runCtx.LogError("graph.tool.panic", "tool", fc.Name, "recover", r)
				res = callResult{err: tool.WrapError(fc.Name, panicError(r))}
			}
			done <- res
		}()

		res.result, res.err = e.call(toolCtx, fc)
	}()

	var out Outcome

	select {
	case res := <-done:
		out = Outcome{Call: fc, Result: res.result, Err: res.err}
	case <-ctx.Done():
		// The tool ignored its deadline; report a timeout and let it finish
		// in the background.
		err := ctx.Err()
		if runCtx.Err() == nil {
			err = tool.WrapError(fc.Name, fmt.Errorf("%w: %s timed out after %s", core.ErrExternalService, fc.Name, e.cfg.CallTimeout))
		}
		out = Outcome{Call: fc, Err: err}
	}

	out.Duration = time.Since(start)

	logToolCall(runCtx, fc, out.Duration, out.Err)

	return out
}

// logToolCall reports one executed call, through the turn logger's helper
// when the run carries one.
func logToolCall(runCtx *core.RunContext, fc core.FunctionCall, dur time.Duration, err error) {
	if tl, ok := runCtx.Logger().(*logging.TurnLogger); ok {
		tl.LogToolCall(fc.Name, fc.ID, dur, err)
		return
	}

	if err != nil {
		runCtx.LogWarn("tool.call.failed", "tool", fc.Name, "function_call_id", fc.ID, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}

	runCtx.LogInfo("tool.call.completed", "tool", fc.Name, "function_call_id", fc.ID, "duration_ms", dur.Milliseconds())
}

// call centralizes tool lookup, argument decoding and execution.
func (e *Executor) call(toolCtx *core.ToolContext, fc core.FunctionCall) (any, error) {
	impl, ok := e.tools.Get(fc.Name)
	if !ok {
		return nil, tool.ErrUnknownTool(fc.Name)
	}

	argMap := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &argMap); err != nil {
			return nil, &tool.ToolError{
				Tool:    fc.Name,
				Message: fmt.Sprintf("failed to unmarshal args: %v", err),
				Code:    tool.CodeValidation,
				Err:     err,
			}
		}
	}

	return impl.Call(toolCtx, argMap)
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
