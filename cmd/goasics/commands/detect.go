package commands

import (
	"github.com/spf13/cobra"

	"github.com/willibrandon/goasics/asics"
	"github.com/willibrandon/goasics/cmd/goasics/cli"
	"github.com/willibrandon/goasics/cmd/goasics/output"
)

// Formats reported by detect.
const (
	formatSimple   = "asic-s"
	formatExtended = "asic-e"
	formatUnknown  = "unknown"
)

// NewDetectCommand creates the detect command
func NewDetectCommand(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>",
		Short: "Report whether a file is an ASiC-S or ASiC-E container",
		Long: `Reports the container form of a file from its extension, or from its
mimetype entry when the extension is not conclusive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(env, args[0])
		},
	}
}

func detectFormat(path string) string {
	switch {
	case asics.IsSimpleFormat(path):
		return formatSimple
	case asics.IsExtendedFormat(path):
		return formatExtended
	}
	return formatUnknown
}

func runDetect(env *cli.Env, path string) error {
	format := detectFormat(path)
	if env.JSON {
		return output.WriteJSON(env.Console.Out(), output.DetectOutput{
			SchemaVersion: output.CurrentSchemaVersion,
			Path:          path,
			Format:        format,
		})
	}
	env.Console.Println(format)
	return nil
}
