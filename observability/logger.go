package observability

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/willibrandon/mtlog"
	"github.com/willibrandon/mtlog/core"
	"github.com/willibrandon/mtlog/sinks"
)

// Logger writes message-template events such as
// "Signed {Container} with {Digest}". Arguments fill the named holes in order.
type Logger interface {
	VerboseContext(ctx context.Context, messageTemplate string, args ...any)
	Debug(messageTemplate string, args ...any)
	DebugContext(ctx context.Context, messageTemplate string, args ...any)
	Info(messageTemplate string, args ...any)
	InfoContext(ctx context.Context, messageTemplate string, args ...any)
	Warn(messageTemplate string, args ...any)
	WarnContext(ctx context.Context, messageTemplate string, args ...any)
	Error(messageTemplate string, args ...any)
	ErrorContext(ctx context.Context, messageTemplate string, args ...any)

	// ForContext returns a logger that attaches key to every event.
	ForContext(key string, value any) Logger
}

// LogLevel orders event severities from VerboseLevel up.
type LogLevel int

const (
	VerboseLevel LogLevel = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var minimumLevel = map[LogLevel]mtlog.Option{
	VerboseLevel: mtlog.Verbose(),
	DebugLevel:   mtlog.Debug(),
	InfoLevel:    mtlog.Information(),
	WarnLevel:    mtlog.Warning(),
	ErrorLevel:   mtlog.Error(),
	FatalLevel:   mtlog.WithMinimumLevel(core.FatalLevel),
}

// ParseLogLevel maps a CLI verbosity name to a LogLevel.
// Accepts quiet, minimal, normal, detailed and diagnostic as well as the level names.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "q", "quiet", "error":
		return ErrorLevel, nil
	case "m", "minimal", "warn", "warning":
		return WarnLevel, nil
	case "", "n", "normal", "info":
		return InfoLevel, nil
	case "d", "detailed", "debug":
		return DebugLevel, nil
	case "diag", "diagnostic", "verbose":
		return VerboseLevel, nil
	case "fatal":
		return FatalLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown verbosity %q", s)
}

// mtlogLogger exposes an mtlog logger through Logger.
type mtlogLogger struct {
	core.Logger
}

// NewLogger writes events at or above level to w through an mtlog console sink.
func NewLogger(w io.Writer, level LogLevel) Logger {
	opts := []mtlog.Option{
		mtlog.WithSink(sinks.NewConsoleSinkWithWriter(w)),
		mtlog.WithTimestamp(),
		mtlog.WithMachineName(),
		mtlog.WithProcess(),
	}
	if opt, ok := minimumLevel[level]; ok {
		opts = append(opts, opt)
	}
	return mtlogLogger{mtlog.New(opts...)}
}

func (l mtlogLogger) ForContext(key string, value any) Logger {
	return mtlogLogger{l.Logger.ForContext(key, value)}
}

type nullLogger struct{}

// NewNullLogger returns a Logger that drops every event.
func NewNullLogger() Logger { return nullLogger{} }

func (nullLogger) VerboseContext(context.Context, string, ...any) {}
func (nullLogger) Debug(string, ...any)                           {}
func (nullLogger) DebugContext(context.Context, string, ...any)   {}
func (nullLogger) Info(string, ...any)                            {}
func (nullLogger) InfoContext(context.Context, string, ...any)    {}
func (nullLogger) Warn(string, ...any)                            {}
func (nullLogger) WarnContext(context.Context, string, ...any)    {}
func (nullLogger) Error(string, ...any)                           {}
func (nullLogger) ErrorContext(context.Context, string, ...any)   {}
func (n nullLogger) ForContext(string, any) Logger                { return n }
