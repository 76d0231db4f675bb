package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/recallmesh"
	"github.com/hupe1980/recallmesh/config"
)

// NewRootCmd builds the command tree. appOpts are applied to every App the
// subcommands create.
func NewRootCmd(version string, appOpts ...func(o *recallmesh.Options)) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "recallmesh",
		Short:         "Conversational agent with long-term memory",
		Long:          `A chat agent that remembers facts about each user across conversations.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)

	loader := &appLoader{opts: appOpts}

	rootCmd.AddCommand(
		NewChatCmd(loader),
		NewServeCmd(loader),
		NewMCPCmd(loader),
	)

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().String("provider", "", "Model provider (openai|anthropic)")
	cmd.PersistentFlags().String("model", "", "Model name")
}

type appLoader struct {
	opts []func(o *recallmesh.Options)
}

func (l *appLoader) config(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}

	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Model.Provider = v
	}

	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Model.Name = v
	}

	return cfg, nil
}

func (l *appLoader) load(cmd *cobra.Command, extra ...func(o *recallmesh.Options)) (*recallmesh.App, error) {
	cfg, err := l.config(cmd)
	if err != nil {
		return nil, err
	}

	fns := append([]func(o *recallmesh.Options){func(o *recallmesh.Options) { o.Config = cfg }}, l.opts...)

	return recallmesh.New(append(fns, extra...)...)
}
