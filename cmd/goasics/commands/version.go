package commands

import (
	"github.com/spf13/cobra"

	"github.com/willibrandon/goasics/cmd/goasics/cli"
	"github.com/willibrandon/goasics/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env.Console.Println(version.FullInfo())
			return nil
		},
	}
}
