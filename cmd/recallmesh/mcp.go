package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hupe1980/recallmesh"
	"github.com/hupe1980/recallmesh/mcpserver"
)

func NewMCPCmd(loader *appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the memory tools over MCP stdio",
		Long:  `Expose save_memory and search_memories for one owner to MCP clients over stdin/stdout.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, _ := cmd.Flags().GetString("owner")

			// The router is unused over MCP.
			app, err := loader.load(cmd, func(o *recallmesh.Options) { o.DisableRouter = true })
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := mcpserver.New(app.Memory, func(o *mcpserver.Options) {
				o.OwnerID = owner
				o.Logger = app.Logger
			})
			if err != nil {
				return err
			}

			return server.ServeStdio(s)
		},
	}

	cmd.Flags().StringP("owner", "u", "", "Owner (user) id")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
