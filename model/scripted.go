package model

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/recallmesh/core"
)

// Step is one scripted model reaction.
type Step struct {
	Turn  Turn          // Emitted when Err is nil
	Err   error         // Returned instead of a response
	Delay time.Duration // Wait before answering; honours ctx cancellation
}

// ScriptedModel is a deterministic in‑memory Model for tests and offline
// demos. It replays Steps in order; once exhausted the last step repeats.
// Every request is recorded for later inspection.
type ScriptedModel struct {
	info  Info
	mu    sync.Mutex
	steps []Step
	next  int
	reqs  []Request
	fn    func(req Request) Step
}

// NewScriptedModel constructs a ScriptedModel replaying steps.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		steps: steps,
	}
}

// NewFuncModel constructs a ScriptedModel whose reaction is computed per request.
func NewFuncModel(fn func(req Request) Step) *ScriptedModel {
	m := NewScriptedModel()
	m.fn = fn

	return m
}

// Requests returns a copy of every request received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Request(nil), m.reqs...)
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.reqs)
}

func (m *ScriptedModel) nextStep(req Request) Step {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reqs = append(m.reqs, req)

	if m.fn != nil {
		return m.fn(req)
	}

	if len(m.steps) == 0 {
		return Step{Turn: Answer{Text: "ok"}}
	}

	s := m.steps[min(m.next, len(m.steps)-1)]
	m.next++

	return s
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	step := m.nextStep(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if step.Delay > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(step.Delay):
			}
		}

		if step.Err != nil {
			errCh <- step.Err
			return
		}

		var content core.Content
		finish := "stop"

		switch t := step.Turn.(type) {
		case ToolRequests:
			content = t.Content()
			finish = "tool_calls"
		case nil:
			content = Answer{}.Content()
		default:
			content = t.Content()
		}

		respCh <- Response{Content: content, FinishReason: finish}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *ScriptedModel) Info() Info { return m.info }
