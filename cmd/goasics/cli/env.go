package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/willibrandon/goasics/cmd/goasics/config"
	"github.com/willibrandon/goasics/cmd/goasics/output"
	"github.com/willibrandon/goasics/observability"
	"github.com/willibrandon/goasics/version"
)

// Env is the per-invocation state shared by all commands. The root command fills it in
// before any subcommand runs.
type Env struct {
	Console     *output.Console
	Logger      observability.Logger
	OperationID string

	// JSON is set by --format json.
	JSON bool

	// Config is the loaded configuration and ConfigPath where it lives or will be written.
	Config     *config.Config
	ConfigPath string

	verbosity   string
	format      string
	configFile  string
	settings    *config.Settings
	settingsErr error
	tracer      *sdktrace.TracerProvider
}

// NewEnv returns an Env writing to console with logging disabled.
func NewEnv(console *output.Console) *Env {
	return &Env{
		Console: console,
		Logger:  observability.NewNullLogger(),
		Config:  config.New(),
		format:  "text",
	}
}

// Settings returns the resolved configuration, or the error that made it invalid.
// Commands that do not need settings can run with an invalid file so it can be repaired.
func (e *Env) Settings() (*config.Settings, error) {
	if e.settingsErr != nil {
		return nil, e.settingsErr
	}
	if e.settings == nil {
		s, err := e.Config.Resolve()
		if err != nil {
			return nil, err
		}
		e.settings = s
	}
	return e.settings, nil
}

func (e *Env) setup(ctx context.Context) error {
	level, err := observability.ParseLogLevel(e.verbosity)
	if err != nil {
		return err
	}
	e.Console.SetVerbosity(consoleVerbosity(level))

	switch strings.ToLower(e.format) {
	case "", "text":
		e.JSON = false
	case "json":
		e.JSON = true
	default:
		return fmt.Errorf("unsupported format %q (text, json)", e.format)
	}

	e.OperationID = uuid.NewString()
	e.Logger = observability.NewLogger(e.Console.Err(), loggerLevel(level)).
		ForContext("OperationId", e.OperationID)

	cfg, path, err := config.LoadOrEmpty(e.configFile)
	if err != nil {
		return err
	}
	e.Config, e.ConfigPath = cfg, path
	e.settings, e.settingsErr = cfg.Resolve()
	if e.settingsErr != nil {
		e.settingsErr = fmt.Errorf("invalid configuration %s: %w", path, e.settingsErr)
		e.Logger.Warn("Ignoring invalid configuration {Path}: {Error}", path, e.settingsErr)
		return nil
	}

	if e.settings.Tracing != observability.ExporterNone {
		tc := observability.DefaultTracerConfig()
		tc.ServiceVersion = version.Version
		tc.Environment = "cli"
		tc.Exporter = e.settings.Tracing
		tc.OTLPEndpoint = e.settings.OTLPEndpoint
		tp, err := observability.SetupTracing(ctx, tc)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		e.tracer = tp
	}

	e.Logger.Debug("Loaded configuration from {Path}", path)
	return nil
}

func (e *Env) teardown(ctx context.Context) error {
	if e.tracer == nil {
		return nil
	}
	tp := e.tracer
	e.tracer = nil
	return observability.ShutdownTracing(ctx, tp)
}

func consoleVerbosity(level observability.LogLevel) output.Verbosity {
	switch {
	case level >= observability.ErrorLevel:
		return output.VerbosityQuiet
	case level == observability.DebugLevel:
		return output.VerbosityDetailed
	case level <= observability.VerboseLevel:
		return output.VerbosityDiagnostic
	}
	return output.VerbosityNormal
}

// loggerLevel keeps structured logs to warnings at normal verbosity; the console already
// reports what happened.
func loggerLevel(level observability.LogLevel) observability.LogLevel {
	if level == observability.InfoLevel {
		return observability.WarnLevel
	}
	return level
}
