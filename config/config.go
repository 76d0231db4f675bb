// Package config loads recallmesh settings from an optional YAML file
// overlaid by environment variables (a .env file is honoured).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	BackendMemory  = "memory"
	BackendChromem = "chromem"
	BackendSQLite  = "sqlite"

	EmbedderOpenAI = "openai"
	EmbedderHash   = "hash"

	TokenizerTiktoken = "tiktoken"
	TokenizerRune     = "rune"
)

// ModelConfig selects the chat model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name,omitempty"`
	Temperature float64 `yaml:"temperature"`
	APIKey      string  `yaml:"api_key,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
}

// GraphConfig bounds a turn.
type GraphConfig struct {
	TokenBudget int           `yaml:"token_budget"`
	Tokenizer   string        `yaml:"tokenizer"`
	MaxRounds   int           `yaml:"max_rounds"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	RecallK     int           `yaml:"recall_k"`
	MaxParallel int           `yaml:"max_parallel"`
}

// MemoryConfig selects the memory store.
type MemoryConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path,omitempty"`
	Compress bool   `yaml:"compress,omitempty"`
}

// EmbedderConfig selects the embedder.
type EmbedderConfig struct {
	Backend    string `yaml:"backend"`
	Model      string `yaml:"model,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	CacheSize  int64  `yaml:"cache_size"`
}

// CheckpointConfig selects the checkpoint store.
type CheckpointConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
}

// SearchConfig configures the web search client.
type SearchConfig struct {
	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the websocket endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full application configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Graph      GraphConfig      `yaml:"graph"`
	Memory     MemoryConfig     `yaml:"memory"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Search     SearchConfig     `yaml:"search"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

// Default returns a configuration that runs locally without external state:
// in-memory stores and the hashing embedder.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.7,
		},
		Graph: GraphConfig{
			TokenBudget: 2048,
			Tokenizer:   TokenizerTiktoken,
			MaxRounds:   8,
			CallTimeout: 60 * time.Second,
			RecallK:     3,
		},
		Memory:     MemoryConfig{Backend: BackendMemory},
		Embedder:   EmbedderConfig{Backend: EmbedderHash, CacheSize: 4096},
		Checkpoint: CheckpointConfig{Backend: BackendMemory},
		Log:        LogConfig{Level: "info", Format: "text"},
		Server:     ServerConfig{Addr: ":8080"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment, then validates it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	var errs []error

	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}

	str("RECALLMESH_PROVIDER", &c.Model.Provider)
	str("RECALLMESH_MODEL", &c.Model.Name)
	str("RECALLMESH_MODEL_BASE_URL", &c.Model.BaseURL)

	if v, ok := lookup("RECALLMESH_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RECALLMESH_TEMPERATURE: %w", err))
		} else {
			c.Model.Temperature = f
		}
	}

	// Provider keys only fill an unset APIKey.
	if c.Model.APIKey == "" {
		switch c.Model.Provider {
		case ProviderOpenAI:
			str("OPENAI_API_KEY", &c.Model.APIKey)
		case ProviderAnthropic:
			str("ANTHROPIC_API_KEY", &c.Model.APIKey)
		}
	}

	num("RECALLMESH_TOKEN_BUDGET", &c.Graph.TokenBudget)
	str("RECALLMESH_TOKENIZER", &c.Graph.Tokenizer)
	num("RECALLMESH_MAX_ROUNDS", &c.Graph.MaxRounds)
	num("RECALLMESH_RECALL_K", &c.Graph.RecallK)

	if v, ok := lookup("RECALLMESH_CALL_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RECALLMESH_CALL_TIMEOUT: %w", err))
		} else {
			c.Graph.CallTimeout = d
		}
	}

	str("RECALLMESH_MEMORY_BACKEND", &c.Memory.Backend)
	str("RECALLMESH_MEMORY_PATH", &c.Memory.Path)
	str("RECALLMESH_EMBEDDER", &c.Embedder.Backend)
	str("RECALLMESH_EMBEDDING_MODEL", &c.Embedder.Model)
	str("RECALLMESH_CHECKPOINT_BACKEND", &c.Checkpoint.Backend)
	str("RECALLMESH_CHECKPOINT_PATH", &c.Checkpoint.Path)

	if c.Search.APIKey == "" {
		str("TAVILY_API_KEY", &c.Search.APIKey)
	}
	str("RECALLMESH_SEARCH_ENDPOINT", &c.Search.Endpoint)

	str("RECALLMESH_LOG_LEVEL", &c.Log.Level)
	str("RECALLMESH_LOG_FORMAT", &c.Log.Format)
	str("RECALLMESH_ADDR", &c.Server.Addr)

	return errors.Join(errs...)
}

// Validate rejects unknown backends and non-positive limits.
func (c *Config) Validate() error {
	var errs []error

	oneOf := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want %s)", field, value, strings.Join(allowed, "|")))
	}

	positive := func(field string, value int) {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", field, value))
		}
	}

	oneOf("model.provider", c.Model.Provider, ProviderOpenAI, ProviderAnthropic)
	oneOf("graph.tokenizer", c.Graph.Tokenizer, TokenizerTiktoken, TokenizerRune)
	oneOf("memory.backend", c.Memory.Backend, BackendMemory, BackendChromem)
	oneOf("embedder.backend", c.Embedder.Backend, EmbedderHash, EmbedderOpenAI)
	oneOf("checkpoint.backend", c.Checkpoint.Backend, BackendMemory, BackendSQLite)

	positive("graph.token_budget", c.Graph.TokenBudget)
	positive("graph.max_rounds", c.Graph.MaxRounds)
	positive("graph.recall_k", c.Graph.RecallK)

	if c.Graph.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("graph.call_timeout must be positive, got %s", c.Graph.CallTimeout))
	}

	if c.Graph.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("graph.max_parallel must not be negative, got %d", c.Graph.MaxParallel))
	}

	if c.Embedder.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("embedder.cache_size must not be negative, got %d", c.Embedder.CacheSize))
	}

	if c.Checkpoint.Backend == BackendSQLite && c.Checkpoint.Path == "" {
		errs = append(errs, errors.New("checkpoint.path is required for the sqlite backend"))
	}

	return errors.Join(errs...)
}
