package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/recallmesh"
	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/graph"
)

func NewChatCmd(loader *appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively",
		Long:  `Start a REPL for one owner and thread. Type "exit" or "quit" to leave.`,
		Args:  cobra.NoArgs,
		RunE:  makeChatRunner(loader),
	}

	cmd.Flags().StringP("owner", "u", "", "Owner (user) id")
	cmd.Flags().StringP("thread", "t", "default", "Thread id")
	cmd.Flags().BoolP("verbose", "v", false, "Print graph node updates")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func makeChatRunner(loader *appLoader) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		thread, _ := cmd.Flags().GetString("thread")
		verbose, _ := cmd.Flags().GetBool("verbose")

		var extra []func(o *recallmesh.Options)
		if verbose {
			extra = append(extra, func(o *recallmesh.Options) { o.Observer = printUpdate(cmd.ErrOrStderr()) })
		}

		app, err := loader.load(cmd, extra...)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		scanner := bufio.NewScanner(cmd.InOrStdin())

		for {
			fmt.Fprint(out, "you> ")

			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}

			line := strings.TrimSpace(scanner.Text())

			switch strings.ToLower(line) {
			case "":
				continue
			case "exit", "quit":
				return nil
			}

			reply, err := app.ProcessTurn(cmd.Context(), owner, thread, line)
			if err != nil {
				if cmd.Context().Err() != nil {
					return cmd.Context().Err()
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)

				continue
			}

			fmt.Fprintf(out, "ai> %s\n", reply)
		}
	}
}

func printUpdate(w io.Writer) graph.Observer {
	return func(u graph.Update) {
		fmt.Fprintf(w, "[%s]", u.Node)

		if len(u.RecallMemories) > 0 {
			fmt.Fprintf(w, " recall=%q", u.RecallMemories)
		}

		for _, m := range u.Messages {
			for _, fc := range m.FunctionCalls() {
				fmt.Fprintf(w, " call %s(%s)", fc.Name, fc.Arguments)
			}

			if m.Role == core.RoleTool {
				for _, fr := range m.FunctionResponses() {
					fmt.Fprintf(w, " result %s=%s", fr.Name, fr.Text())
				}
			}
		}

		fmt.Fprintln(w)
	}
}
