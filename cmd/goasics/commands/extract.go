package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/willibrandon/goasics/cmd/goasics/cli"
)

type extractOptions struct {
	output string
}

// NewExtractCommand creates the extract command
func NewExtractCommand(env *cli.Env) *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract <container>",
		Short: "Write the data object of a container",
		Long: `Writes the data object to --output, or to a file of the same name in the
current directory. Use "-o -" for standard output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), env, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Destination file, or - for standard output")
	return cmd
}

func runExtract(ctx context.Context, env *cli.Env, path string, opts *extractOptions) error {
	c, err := openContainer(ctx, env, path)
	if err != nil {
		return err
	}

	if opts.output == "-" {
		_, err := c.Extract(env.Console.Out())
		return err
	}

	dest := opts.output
	if dest == "" {
		dest = filepath.Base(c.DataFile().Name())
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	n, err := c.Extract(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return err
	}

	if !env.JSON {
		env.Console.Success("Extracted %s (%d bytes)", dest, n)
	}
	return nil
}
