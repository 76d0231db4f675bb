// Package mcpserver exposes the memory tools over the Model Context
// Protocol, so MCP clients can save and search one owner's long-term
// memories.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/internal/util"
	"github.com/hupe1980/recallmesh/logging"
	"github.com/hupe1980/recallmesh/tool"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// DefaultThreadID is the thread recorded for MCP originated calls.
const DefaultThreadID = "mcp"

// Options configure the MCP server.
type Options struct {
	// OwnerID scopes every call. Required.
	OwnerID  string
	ThreadID string
	Logger   logging.Logger
}

// New builds an MCP server exposing save_memory and search_memories backed
// by store.
func New(store core.MemoryStore, optFns ...func(o *Options)) (*server.MCPServer, error) {
	return NewWithTools(store, []tool.Tool{
		tool.NewSaveMemoryTool(),
		tool.NewSearchMemoriesTool(tool.DefaultSearchK),
	}, optFns...)
}

// NewWithTools builds an MCP server exposing tools.
func NewWithTools(store core.MemoryStore, tools []tool.Tool, optFns ...func(o *Options)) (*server.MCPServer, error) {
	opts := Options{ThreadID: DefaultThreadID, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.OwnerID == "" {
		return nil, fmt.Errorf("%w: mcp server requires an owner id", core.ErrOwnerMismatch)
	}

	s := server.NewMCPServer(
		"recallmesh",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Long-term memory for one user. Save durable facts and preferences with save_memory; "+
			"retrieve them with search_memories."),
	)

	for _, t := range tools {
		def, err := Definition(t)
		if err != nil {
			return nil, err
		}

		s.AddTool(def, Handler(store, t, opts))
	}

	return s, nil
}

// Definition converts a tool to its MCP definition.
func Definition(t tool.Tool) (mcp.Tool, error) {
	schema, err := json.Marshal(t.Parameters())
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("marshal %s schema: %w", t.Name(), err)
	}

	return mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema), nil
}

// Handler adapts t to an MCP tool handler running as opts.OwnerID.
func Handler(store core.MemoryStore, t tool.Tool, opts Options) server.ToolHandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := core.CheckpointKey{OwnerID: opts.OwnerID, ThreadID: opts.ThreadID}
		runCtx := core.NewRunContext(ctx, key, util.NewID(), nil, store, 1, logger)
		toolCtx := core.NewToolContext(runCtx, util.NewID())

		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		result, err := t.Call(toolCtx, args)
		if err != nil {
			logger.Warn("mcp.tool.failed", "tool", t.Name(), "error", err.Error())

			// Tool failures are reported in-band; transport errors are reserved
			// for protocol faults.
			return mcp.NewToolResultError(err.Error()), nil
		}

		if s, ok := result.(string); ok {
			return mcp.NewToolResultText(s), nil
		}

		raw, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}

		return mcp.NewToolResultText(string(raw)), nil
	}
}
