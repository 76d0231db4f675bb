package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/recallmesh/server"
)

func NewServeCmd(loader *appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve turns over a websocket",
		Long:  `Accept JSON frames {"owner_id", "thread_id", "message"} on /ws and answer each with {"reply"} or {"error"}.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loader.load(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Config.Server.Addr
			}

			timeout, _ := cmd.Flags().GetDuration("turn-timeout")

			s := server.New(app, func(o *server.Options) {
				o.Logger = app.Logger
				o.TurnTimeout = timeout
			})

			return s.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from config)")
	cmd.Flags().Duration("turn-timeout", 0, "Upper bound for a single turn (0 disables)")

	return cmd
}
