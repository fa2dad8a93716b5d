package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/goasics/asics"
	"github.com/willibrandon/goasics/asics/signatures"
	"github.com/willibrandon/goasics/auth"
	"github.com/willibrandon/goasics/cmd/goasics/cli"
	"github.com/willibrandon/goasics/cmd/goasics/config"
	"github.com/willibrandon/goasics/cmd/goasics/output"
	asicshttp "github.com/willibrandon/goasics/http"
	"github.com/willibrandon/goasics/observability"
	"github.com/willibrandon/goasics/resilience"
	"github.com/willibrandon/goasics/version"
)

type signOptions struct {
	data      string
	mediaType string
	output    string
	tsaURL    string
	tsaCert   string
	tsaKey    string
	localTSA  bool
	digest    string
	policy    string
}

// NewSignCommand creates the sign command
func NewSignCommand(env *cli.Env) *cobra.Command {
	opts := &signOptions{}

	cmd := &cobra.Command{
		Use:   "sign <container>",
		Short: "Time-stamp a container",
		Long: `Adds a time-stamp to an ASiC-S container.

The first signature time-stamps the data object and is stored as
META-INF/timestamp.tst. Every later signature writes an archive manifest
covering the data object and all existing signature artifacts, then
time-stamps that manifest.

With --data a new container is created around the given file.

Examples:
  goasics sign report.asics --data report.pdf --tsa-url https://tsa.example/tsr
  goasics sign report.asics
  goasics sign report.asics --local-tsa --digest sha512`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd.Context(), env, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.data, "data", "", "Create the container around this file")
	cmd.Flags().StringVar(&opts.mediaType, "media-type", "", "Media type of --data (default: from the extension)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the signed container here instead of in place")
	cmd.Flags().StringVar(&opts.tsaURL, "tsa-url", "", "RFC 3161 time-stamp authority URL (default: tsaUrl from config)")
	cmd.Flags().StringVar(&opts.tsaCert, "tsa-cert", "", "PEM certificate of a local time-stamp authority")
	cmd.Flags().StringVar(&opts.tsaKey, "tsa-key", "", "PEM private key of a local time-stamp authority")
	cmd.Flags().BoolVar(&opts.localTSA, "local-tsa", false, "Sign with an ephemeral in-process authority (testing only)")
	cmd.Flags().StringVar(&opts.digest, "digest", "", "Digest algorithm (sha256, sha384, sha512)")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Requested TSA policy OID")
	cmd.MarkFlagsRequiredTogether("tsa-cert", "tsa-key")
	cmd.MarkFlagsMutuallyExclusive("local-tsa", "tsa-url", "tsa-cert")

	return cmd
}

func runSign(ctx context.Context, env *cli.Env, path string, opts *signOptions) error {
	start := time.Now()

	settings, err := env.Settings()
	if err != nil {
		return err
	}

	alg := settings.DigestAlgorithm
	if opts.digest != "" {
		if alg, err = signatures.ParseDigestAlgorithm(opts.digest); err != nil {
			return err
		}
	}

	c, err := loadOrCreate(ctx, env, path, alg, opts)
	if err != nil {
		return err
	}

	signer, err := newSigner(env, settings, opts)
	if err != nil {
		return err
	}

	sig, err := c.Sign(ctx, signer)
	if err != nil {
		return fmt.Errorf("sign %s: %w", path, err)
	}

	target := opts.output
	if target == "" {
		target = path
	}
	if err := c.SaveFile(ctx, target); err != nil {
		return err
	}

	d := describeSignature(len(c.Signatures())-1, sig)
	kind := "initial"
	if d.Archive {
		kind = "archive"
	}

	if env.JSON {
		doc := output.SignOutput{
			SchemaVersion: output.CurrentSchemaVersion,
			Container:     target,
			Kind:          kind,
			Subject:       d.Subject,
			Entries:       c.Metadata().Names(),
			ElapsedMs:     output.MeasureElapsed(start),
		}
		if d.GenTime != nil {
			doc.GenTime = *d.GenTime
		}
		return output.WriteJSON(env.Console.Out(), doc)
	}

	env.Console.Success("Added %s time-stamp over %s to %s", kind, d.Subject, target)
	env.Console.Detail("  generated: %s", formatTime(d))
	env.Console.Detail("  signatures: %d", len(c.Signatures()))
	return nil
}

func loadOrCreate(ctx context.Context, env *cli.Env, path string, alg signatures.DigestAlgorithm, opts *signOptions) (*asics.Container, error) {
	if opts.data == "" {
		return openContainer(ctx, env, path, asics.WithDigestAlgorithm(alg))
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists; omit --data to add a time-stamp", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	c, err := asics.Create(path, asics.WithLogger(env.Logger), asics.WithDigestAlgorithm(alg))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(opts.data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if err := c.AddDataFileFrom(filepath.Base(opts.data), opts.mediaType, f); err != nil {
		return nil, err
	}
	return c, nil
}

func newSigner(env *cli.Env, settings *config.Settings, opts *signOptions) (signatures.Signer, error) {
	var localOpts []signatures.LocalOption
	var remoteOpts []signatures.TimestampClientOption
	if opts.policy != "" {
		oid, err := parseOID(opts.policy)
		if err != nil {
			return nil, err
		}
		localOpts = append(localOpts, signatures.WithLocalPolicy(oid))
		remoteOpts = append(remoteOpts, signatures.WithPolicy(oid))
	}

	switch {
	case opts.localTSA:
		env.Console.Warning("using an ephemeral local time-stamp authority; nobody else will trust these tokens")
		return signatures.GenerateLocalTimestamper("goasics local TSA", 24*time.Hour, localOpts...)
	case opts.tsaCert != "":
		return signatures.LoadLocalTimestamper(opts.tsaCert, opts.tsaKey, localOpts...)
	}

	url := opts.tsaURL
	if url == "" {
		url = settings.TSAURL
	}
	if url == "" {
		return nil, fmt.Errorf("no time-stamp authority configured: pass --tsa-url or set %s", config.KeyTSAURL)
	}

	client := asicshttp.NewClientWithOptions(
		asicshttp.WithTimeout(settings.Timeout),
		asicshttp.WithHTTP3(settings.HTTP3),
		asicshttp.WithTracing(settings.Tracing != observability.ExporterNone),
		asicshttp.WithUserAgent("goasics/"+version.Version),
		asicshttp.WithLogger(env.Logger),
		asicshttp.WithCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	)
	remoteOpts = append(remoteOpts,
		signatures.WithHTTPClient(client),
		signatures.WithClientLogger(env.Logger),
	)
	if a := auth.FromCredentials(settings.Credentials); a != nil {
		env.Logger.Debug("Authenticating to {TSA} with {AuthType}", url, a.Type())
		remoteOpts = append(remoteOpts, signatures.WithAuthenticator(a))
	}
	return signatures.NewTimestampClient(url, remoteOpts...), nil
}
