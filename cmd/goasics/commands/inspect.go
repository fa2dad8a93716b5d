package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/goasics/cmd/goasics/cli"
	"github.com/willibrandon/goasics/cmd/goasics/output"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <container>",
		Short: "Show the data object, signature chain and metadata of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), env, args[0])
		},
	}
}

func runInspect(ctx context.Context, env *cli.Env, path string) error {
	start := time.Now()
	c, err := openContainer(ctx, env, path)
	if err != nil {
		return err
	}

	doc := output.NewInspectOutput(path)
	df := c.DataFile()
	doc.DataFile = &output.DataFile{Name: df.Name(), MediaType: df.MediaType(), Size: df.Size()}
	for i, s := range c.Signatures() {
		doc.Signatures = append(doc.Signatures, describeSignature(i, s))
	}
	for _, e := range c.Metadata().Entries() {
		doc.Metadata = append(doc.Metadata, output.MetadataEntry{
			Name:      e.Name,
			MediaType: e.MediaType,
			Size:      len(e.Content),
			Root:      e.Root,
		})
	}
	doc.ElapsedMs = output.MeasureElapsed(start)

	if env.JSON {
		return output.WriteJSON(env.Console.Out(), doc)
	}
	printInspect(env.Console, doc)
	return nil
}

func printInspect(console *output.Console, doc *output.InspectOutput) {
	console.Header("%s", doc.Container)
	console.Printf("Data object: %s (%s, %d bytes)\n\n", doc.DataFile.Name, doc.DataFile.MediaType, doc.DataFile.Size)

	console.Header("Signatures")
	rows := [][]string{{"#", "Profile", "Subject", "Generated", "Digest"}}
	for _, s := range doc.Signatures {
		rows = append(rows, []string{strconv.Itoa(s.Index), s.Profile, s.Subject, formatTime(s), orDash(s.HashAlgorithm)})
	}
	console.Table(rows)
	for _, s := range doc.Signatures {
		if s.TSA != "" {
			console.Detail("  [%d] serial %s, TSA %s", s.Index, s.SerialNumber, s.TSA)
		}
		if s.Policy != "" {
			console.Detail("  [%d] policy %s", s.Index, s.Policy)
		}
		if s.Error != "" {
			console.Warning("signature %d: %s", s.Index, s.Error)
		}
	}

	if len(doc.Metadata) == 0 {
		return
	}
	console.Println()
	console.Header("Metadata")
	rows = [][]string{{"Name", "Media type", "Size", "Root"}}
	for _, e := range doc.Metadata {
		root := ""
		if e.Root {
			root = "yes"
		}
		rows = append(rows, []string{e.Name, e.MediaType, fmt.Sprint(e.Size), root})
	}
	console.Table(rows)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
