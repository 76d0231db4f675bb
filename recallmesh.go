// Package recallmesh assembles a memory-augmented conversational agent from
// configuration: a chat model, owner-scoped long-term memory, a web search
// tool, a token bounded context window and durable per-thread checkpoints.
//
// Most applications interact with this package by:
//  1. Loading a config.Config (config.Load) or starting from config.Default()
//  2. Creating an App via New(), optionally overriding collaborators
//  3. Calling ProcessTurn for every inbound user message
//  4. Calling Close on shutdown
//
// All collaborators are explicit fields of App; there is no package level
// state, so several Apps may coexist in one process.
package recallmesh

import (
	"context"
	"errors"
	"fmt"
	"io"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/recallmesh/checkpoint"
	"github.com/hupe1980/recallmesh/checkpoint/sqlite"
	"github.com/hupe1980/recallmesh/config"
	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/graph"
	"github.com/hupe1980/recallmesh/logging"
	"github.com/hupe1980/recallmesh/memory"
	"github.com/hupe1980/recallmesh/memory/chromem"
	"github.com/hupe1980/recallmesh/memory/embedder"
	"github.com/hupe1980/recallmesh/memory/embedder/hash"
	openaiembed "github.com/hupe1980/recallmesh/memory/embedder/openai"
	"github.com/hupe1980/recallmesh/model"
	"github.com/hupe1980/recallmesh/model/anthropic"
	"github.com/hupe1980/recallmesh/model/openai"
	"github.com/hupe1980/recallmesh/router"
	"github.com/hupe1980/recallmesh/runner"
	"github.com/hupe1980/recallmesh/search"
	"github.com/hupe1980/recallmesh/search/tavily"
	"github.com/hupe1980/recallmesh/tool"
	"github.com/hupe1980/recallmesh/window"
)

// Options configures the App. Unset collaborators are built from Config.
type Options struct {
	// Config defaults to config.Default().
	Config *config.Config

	// Overrides (built from Config when nil)
	Model           model.Model
	Embedder        memory.Embedder
	MemoryStore     core.MemoryStore
	CheckpointStore core.CheckpointStore
	Searcher        search.Searcher
	Tokenizer       window.Tokenizer

	// DisableRouter turns off the intent router fallback.
	DisableRouter bool

	// Observer receives graph node updates.
	Observer graph.Observer

	// Logger (built from Config.Log if nil)
	Logger logging.Logger
}

// App is the assembled agent.
type App struct {
	Config      *config.Config
	Model       model.Model
	Memory      core.MemoryStore
	Checkpoints core.CheckpointStore
	Tools       *tool.Registry
	Graph       *graph.Graph
	Runner      *runner.Runner
	Router      *router.Dispatcher
	Logger      logging.Logger

	closers []io.Closer
}

// ErrSearchNotConfigured is reported by web_search when no search API key
// is configured.
var ErrSearchNotConfigured = fmt.Errorf("%w: web search is not configured", core.ErrExternalService)

// New builds an App. On error every collaborator opened so far is closed.
func New(optFns ...func(o *Options)) (*App, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{Config: cfg}

	logger, err := buildLogger(cfg, opts.Logger)
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	if err := app.build(opts); err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

func (a *App) build(opts Options) error {
	cfg := a.Config

	a.Model = opts.Model
	if a.Model == nil {
		a.Model = buildModel(cfg.Model)
	}

	a.Memory = opts.MemoryStore
	if a.Memory == nil {
		emb := opts.Embedder
		if emb == nil {
			var err error
			if emb, err = a.buildEmbedder(cfg.Embedder); err != nil {
				return err
			}
		}

		store, err := a.buildMemoryStore(cfg.Memory, emb)
		if err != nil {
			return err
		}
		a.Memory = store
	}

	a.Checkpoints = opts.CheckpointStore
	if a.Checkpoints == nil {
		store, err := a.buildCheckpointStore(cfg.Checkpoint)
		if err != nil {
			return err
		}
		a.Checkpoints = store
	}

	searcher := opts.Searcher
	if searcher == nil {
		searcher = buildSearcher(cfg.Search)
	}

	a.Tools = tool.NewRegistry(
		tool.NewSaveMemoryTool(),
		tool.NewSearchMemoriesTool(tool.DefaultSearchK),
		tool.NewWebSearchTool(searcher),
	)

	tok := opts.Tokenizer
	if tok == nil {
		tok = a.buildTokenizer(cfg)
	}

	trimmer := window.NewTrimmer(tok, func(o *window.Options) { o.Budget = cfg.Graph.TokenBudget })

	a.Graph = graph.New(a.Model, a.Tools, trimmer, func(o *graph.Options) {
		o.MaxRounds = cfg.Graph.MaxRounds
		o.CallTimeout = cfg.Graph.CallTimeout
		o.RecallK = cfg.Graph.RecallK
		o.MaxParallel = cfg.Graph.MaxParallel
		o.Observer = opts.Observer
	})

	if !opts.DisableRouter {
		a.Router = router.NewModelDispatcher(a.Model, func(o *router.DispatcherOptions) { o.Logger = a.Logger })
	}

	a.Runner = runner.New(a.Graph, func(o *runner.Options) {
		o.CheckpointStore = a.Checkpoints
		o.MemoryStore = a.Memory
		o.Logger = a.Logger
		if a.Router != nil {
			o.Fallback = a.Router
		}
	})

	a.Logger.Info("app.ready",
		"model", a.Model.Info().Name,
		"memory", cfg.Memory.Backend,
		"checkpoint", cfg.Checkpoint.Backend,
		"embedder", cfg.Embedder.Backend,
	)

	return nil
}

// ProcessTurn runs one conversation turn; see runner.Runner.ProcessTurn.
func (a *App) ProcessTurn(ctx context.Context, ownerID, threadID, userMessage string) (string, error) {
	return a.Runner.ProcessTurn(ctx, ownerID, threadID, userMessage)
}

// Close stops the runner and releases stores in reverse open order.
func (a *App) Close() error {
	var errs []error

	if a.Runner != nil {
		errs = append(errs, a.Runner.Close())
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil

	return errors.Join(errs...)
}

func buildLogger(cfg *config.Config, override logging.Logger) (logging.Logger, error) {
	if override != nil {
		return override, nil
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	return logging.NewSlogLogger(level, cfg.Log.Format, false).WithComponent("recallmesh"), nil
}

func buildModel(cfg config.ModelConfig) model.Model {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	default:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	}
}

func (a *App) buildEmbedder(cfg config.EmbedderConfig) (memory.Embedder, error) {
	var base memory.Embedder

	switch cfg.Backend {
	case config.EmbedderOpenAI:
		base = openaiembed.New(func(o *openaiembed.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.Dimensions > 0 {
				o.Dimensions = int64(cfg.Dimensions)
			}
			// Falls back to OPENAI_API_KEY when the chat provider is not OpenAI.
			if a.Config.Model.Provider == config.ProviderOpenAI {
				o.APIKey = a.Config.Model.APIKey
				o.BaseURL = a.Config.Model.BaseURL
			}
		})
	default:
		if cfg.Dimensions > 0 {
			base = hash.NewWithDimensions(cfg.Dimensions)
		} else {
			base = hash.New()
		}
	}

	if cfg.CacheSize == 0 {
		return base, nil
	}

	cached, err := embedder.NewCached(base, func(o *embedder.CacheOptions) { o.MaxEntries = cfg.CacheSize })
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	a.closers = append(a.closers, cached)

	return cached, nil
}

func (a *App) buildMemoryStore(cfg config.MemoryConfig, emb memory.Embedder) (core.MemoryStore, error) {
	switch cfg.Backend {
	case config.BackendChromem:
		store, err := chromem.New(emb, func(o *chromem.Options) {
			o.Path = cfg.Path
			o.Compress = cfg.Compress
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)

		return store, nil
	default:
		store := memory.NewInMemoryStore(emb)
		a.closers = append(a.closers, store)

		return store, nil
	}
}

func (a *App) buildCheckpointStore(cfg config.CheckpointConfig) (core.CheckpointStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)

		return store, nil
	default:
		store := checkpoint.NewInMemoryStore()
		a.closers = append(a.closers, store)

		return store, nil
	}
}

func buildSearcher(cfg config.SearchConfig) search.Searcher {
	if cfg.APIKey == "" {
		return search.SearcherFunc(func(context.Context, string, int) ([]search.Result, error) {
			return nil, ErrSearchNotConfigured
		})
	}

	return tavily.New(cfg.APIKey, func(o *tavily.Options) {
		if cfg.Endpoint != "" {
			o.Endpoint = cfg.Endpoint
		}
	})
}

func (a *App) buildTokenizer(cfg *config.Config) window.Tokenizer {
	if cfg.Graph.Tokenizer == config.TokenizerRune {
		return window.RuneTokenizer{}
	}

	encoding := ""
	if cfg.Model.Provider == config.ProviderOpenAI {
		encoding = cfg.Model.Name
	}

	tok, err := window.NewTiktoken(encoding)
	if err != nil && encoding != "" {
		tok, err = window.NewTiktoken("")
	}

	if err != nil {
		a.Logger.Warn("app.tokenizer.fallback", "error", err.Error())
		return window.RuneTokenizer{}
	}

	return tok
}
