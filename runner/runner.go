package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/recallmesh/checkpoint"
	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/graph"
	"github.com/hupe1980/recallmesh/internal/util"
	"github.com/hupe1980/recallmesh/logging"
)

// ErrClosed is returned by turns started after Close.
var ErrClosed = errors.New("runner closed")

// Fallback produces a reply when the graph ends a turn without assistant
// content.
type Fallback interface {
	Respond(ctx context.Context, key core.CheckpointKey, message string) (string, error)
}

// FallbackFunc adapts a function to Fallback.
type FallbackFunc func(ctx context.Context, key core.CheckpointKey, message string) (string, error)

// Respond calls f.
func (f FallbackFunc) Respond(ctx context.Context, key core.CheckpointKey, message string) (string, error) {
	return f(ctx, key, message)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// CheckpointStore persists conversation state per (owner, thread).
	CheckpointStore core.CheckpointStore
	// MemoryStore backs the memory tools and recall.
	MemoryStore core.MemoryStore
	// Fallback handles turns that produced no assistant content.
	Fallback Fallback
	// Logger receives turn level events.
	Logger logging.Logger
}

// TurnResult is the detailed outcome of a turn.
type TurnResult struct {
	RunID  string
	Reply  string
	State  *core.ConversationState // Copy of the persisted state
	Graph  graph.Result
	Routed bool // Reply came from the Fallback
}

// Runner coordinates turns: it locks the thread, loads its checkpoint, runs
// the graph and persists the outcome. Public methods are safe for
// concurrent use.
type Runner struct {
	graph       *graph.Graph
	checkpoints core.CheckpointStore
	memoryStore core.MemoryStore
	fallback    Fallback
	logger      logging.Logger
	locker      *checkpoint.Locker

	activeRuns map[string]context.CancelFunc
	closed     bool
	wg         sync.WaitGroup
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(g *graph.Graph, optFns ...func(o *Options)) *Runner {
	opts := Options{
		CheckpointStore: checkpoint.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Runner{
		graph:       g,
		checkpoints: opts.CheckpointStore,
		memoryStore: opts.MemoryStore,
		fallback:    opts.Fallback,
		logger:      opts.Logger,
		locker:      checkpoint.NewLocker(),
		activeRuns:  make(map[string]context.CancelFunc),
	}
}

// ProcessTurn runs one turn for (ownerID, threadID) and returns the reply.
func (r *Runner) ProcessTurn(ctx context.Context, ownerID, threadID, userMessage string) (string, error) {
	res, err := r.Run(ctx, core.CheckpointKey{OwnerID: ownerID, ThreadID: threadID}, userMessage)
	if err != nil {
		return "", err
	}

	return res.Reply, nil
}

// Run is ProcessTurn with the detailed result.
func (r *Runner) Run(ctx context.Context, key core.CheckpointKey, userMessage string) (TurnResult, error) {
	if err := key.Validate(); err != nil {
		return TurnResult{}, err
	}

	runID := util.NewID()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := r.track(runID, cancel); err != nil {
		return TurnResult{}, err
	}
	defer r.untrack(runID)

	start := time.Now()
	logger := r.logger
	if tl, ok := logger.(*logging.TurnLogger); ok {
		logger = tl.WithTurn(key.OwnerID, key.ThreadID, runID)
	}

	res, err := r.runLocked(ctx, key, runID, userMessage, logger)

	rounds := res.Graph.ToolRounds
	messages := 0
	if res.State != nil {
		messages = res.State.Len()
	}

	if tl, ok := logger.(*logging.TurnLogger); ok {
		tl.LogTurn(rounds, messages, time.Since(start), err)
	} else if err != nil {
		logger.Error("runner.turn.failed", "run_id", runID, "key", key.String(), "error", err.Error())
	} else {
		logger.Info("runner.turn.complete", "run_id", runID, "key", key.String(), "rounds", rounds, "messages", messages)
	}

	return res, err
}

func (r *Runner) runLocked(ctx context.Context, key core.CheckpointKey, runID, userMessage string, logger logging.Logger) (TurnResult, error) {
	unlock, err := r.locker.Lock(ctx, key)
	if err != nil {
		return TurnResult{}, err
	}
	defer unlock()

	prior, found, err := r.checkpoints.Load(ctx, key)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load checkpoint: %w", err)
	}

	if !found {
		logger.Debug("runner.checkpoint.new", "key", key.String())
		prior = core.NewConversationState()
	}

	// The graph works on a private copy; prior stays authoritative until Save.
	working := prior.Clone()
	working.RecallMemories = nil
	working.Append(core.NewTextContent(core.RoleUser, userMessage))

	runCtx := core.NewRunContext(ctx, key, runID, working, r.memoryStore, r.graph.MaxRounds(), logger)

	gres, err := r.graph.Run(runCtx)
	if err != nil {
		return TurnResult{RunID: runID}, err
	}

	res := TurnResult{RunID: runID, Reply: gres.Reply, Graph: gres}

	if res.Reply == "" && r.fallback != nil {
		reply, ferr := r.fallback.Respond(ctx, key, userMessage)

		switch {
		case ferr != nil:
			logger.Warn("runner.fallback.failed", "error", ferr.Error())
		case reply != "":
			working.Append(core.NewTextContent(core.RoleAssistant, reply))
			res.Reply = reply
			res.Routed = true
		}
	}

	if err := ctx.Err(); err != nil {
		return TurnResult{RunID: runID}, err
	}

	if err := r.checkpoints.Save(ctx, key, working); err != nil {
		return TurnResult{RunID: runID}, fmt.Errorf("save checkpoint: %w", err)
	}

	res.State = working.Clone()

	return res, nil
}

// Cancel cancels a running turn by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// Active returns the number of turns in flight.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.activeRuns)
}

// Close rejects new turns, cancels the active ones and waits for them.
func (r *Runner) Close() error {
	r.mu.Lock()
	r.closed = true
	for _, cancel := range r.activeRuns {
		cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()

	return nil
}

func (r *Runner) track(runID string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	r.activeRuns[runID] = cancel
	r.wg.Add(1)

	return nil
}

func (r *Runner) untrack(runID string) {
	r.mu.Lock()
	delete(r.activeRuns, runID)
	r.mu.Unlock()

	r.wg.Done()
}
