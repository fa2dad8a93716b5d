// Package cli holds the goasics root command and the state it shares with subcommands.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/willibrandon/goasics/cmd/goasics/output"
	"github.com/willibrandon/goasics/version"
)

// Console is the global console for CLI commands
var Console = output.DefaultConsole()

// Default is the environment of the running process.
var Default = NewEnv(Console)

var rootCmd = NewRootCommand(Default)

// NewRootCommand builds the root command bound to env.
func NewRootCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goasics",
		Short: "ASiC-S container tool",
		Long: `goasics creates, time-stamps, inspects and verifies ASiC-S containers.

Each "sign" either time-stamps the data object or, when the container is
already signed, adds an archive manifest and a new time-stamp token that
covers everything signed so far.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.teardown(context.WithoutCancel(cmd.Context()))
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.SetOut(env.Console.Out())
	cmd.SetErr(env.Console.Err())

	flags := cmd.PersistentFlags()
	flags.StringVar(&env.verbosity, "verbosity", "normal", "Display verbosity (quiet, minimal, normal, detailed, diagnostic)")
	flags.StringVar(&env.format, "format", "text", "Output format (text, json)")
	flags.StringVar(&env.configFile, "configfile", "", "goasics.config file to use")

	cmd.Version = version.Version
	cmd.SetVersionTemplate(version.FullInfo() + "\n")
	return cmd
}

// ExecuteContext runs the root command
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// AddCommand adds a command to the root command
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// Shutdown flushes tracing when a command failed before its post-run hook.
func Shutdown(ctx context.Context) error {
	return Default.teardown(ctx)
}
