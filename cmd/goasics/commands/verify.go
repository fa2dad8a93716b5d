package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/goasics/cmd/goasics/cli"
	"github.com/willibrandon/goasics/cmd/goasics/output"
)

// NewVerifyCommand creates the verify command
func NewVerifyCommand(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <container>",
		Short: "Check every time-stamp and manifest digest of a container",
		Long: `Checks that each time-stamp token covers the artifact it claims to cover,
that its CMS signature verifies with the embedded TSA certificate, and that
every archive manifest reference matches the entry it names.

Trust in the TSA certificate is not evaluated. Exits with an error when any
signature fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), env, args[0])
		},
	}
}

func runVerify(ctx context.Context, env *cli.Env, path string) error {
	start := time.Now()
	c, err := openContainer(ctx, env, path)
	if err != nil {
		return err
	}

	statuses, verr := c.Verify()
	sigs := c.Signatures()

	doc := output.NewVerifyOutput(path)
	doc.Valid = verr == nil
	failed := 0
	for _, st := range statuses {
		d := describeSignature(st.Index, sigs[st.Index])
		valid := st.Valid()
		d.Valid = &valid
		if !valid {
			failed++
			d.Error = st.Err.Error()
		}
		doc.Signatures = append(doc.Signatures, d)
	}
	doc.ElapsedMs = output.MeasureElapsed(start)

	if env.JSON {
		if err := output.WriteJSON(env.Console.Out(), doc); err != nil {
			return err
		}
	} else {
		for _, d := range doc.Signatures {
			if *d.Valid {
				env.Console.Success("✓ [%d] %s over %s at %s", d.Index, d.Profile, d.Subject, formatTime(d))
				continue
			}
			env.Console.Error("✗ [%d] %s over %s: %s", d.Index, d.Profile, d.Subject, d.Error)
		}
	}

	if verr != nil {
		if statuses == nil {
			return verr
		}
		return fmt.Errorf("%d of %d signatures failed verification", failed, len(statuses))
	}
	env.Logger.Info("Verified {Count} signatures in {Path}", len(statuses), path)
	return nil
}
