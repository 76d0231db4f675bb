// Package logging provides a minimal logging interface and adapters for recallmesh.
//
// The Logger interface defines the standard leveled methods (Debug, Info, Warn,
// Error) taking slog style key/value pairs. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - TurnLogger, a slog backed logger with owner/thread context and helpers
//     for tool calls, model calls and whole turns
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	app, err := recallmesh.New(cfg, func(o *recallmesh.Options) { o.Logger = logger })
package logging
