package main

import (
	"fmt"
	"os"

	"github.com/CodexForgeBR/tandem/internal/cli"
	"github.com/CodexForgeBR/tandem/internal/config"
	"github.com/CodexForgeBR/tandem/internal/logging"
	"github.com/spf13/cobra"
)

// version vars injected via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cfg := config.NewDefaultConfig()

	rootCmd := &cobra.Command{
		Use:     "tandem",
		Short:   "Supervised local agent runtime",
		Long:    "Tandem drives a local executor model through tool calls while a supervisor model reviews every answer.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.ValidateFlags(cmd, cfg); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.BindFlags(rootCmd, cfg)
	cli.SetCustomHelp(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logging.Error(err.Error())
		os.Exit(1)
	}
}

// loadConfig applies the full precedence chain on top of the parsed flags.
func loadConfig(cmd *cobra.Command, flags *config.Config) (*config.Config, error) {
	if err := config.LoadDotEnv(flags.WorkDir); err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithPrecedence(
		config.GlobalConfigPath(),
		config.ProjectConfigPath(flags.WorkDir),
		flags.ConfigFile,
		cli.BuildCLIOverrides(cmd, flags),
	)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cli.MergeCLIOnly(cfg, flags)
	if err := cli.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
