package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the tracer name for goasics operations
	TracerName = "github.com/willibrandon/goasics"
)

// Common attribute keys
const (
	AttrContainerPath  = attribute.Key("asics.container.path")
	AttrDataFile       = attribute.Key("asics.datafile.name")
	AttrSignatureCount = attribute.Key("asics.signature.count")
	AttrSignatureKind  = attribute.Key("asics.signature.kind")
	AttrEntryName      = attribute.Key("asics.entry.name")
	AttrOperation      = attribute.Key("asics.operation")
	AttrTSAURL         = attribute.Key("asics.tsa.url")
	AttrDigestMethod   = attribute.Key("asics.digest.method")
)

// StartContainerOpenSpan starts a span for loading a container
func StartContainerOpenSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "container.open",
		trace.WithAttributes(
			AttrContainerPath.String(path),
			AttrOperation.String("open"),
		),
	)
}

// StartContainerSignSpan starts a span for adding a signature to a container
func StartContainerSignSpan(ctx context.Context, dataFile string, existing int) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "container.sign",
		trace.WithAttributes(
			AttrDataFile.String(dataFile),
			AttrSignatureCount.Int(existing),
			AttrOperation.String("sign"),
		),
	)
}

// StartContainerSaveSpan starts a span for serializing a container
func StartContainerSaveSpan(ctx context.Context, entries int) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "container.save",
		trace.WithAttributes(
			attribute.Int("asics.metadata.count", entries),
			AttrOperation.String("save"),
		),
	)
}

// StartTSARequestSpan starts a span for a time-stamp authority round trip
func StartTSARequestSpan(ctx context.Context, url, digestMethod string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "tsa.request",
		trace.WithAttributes(
			AttrTSAURL.String(url),
			AttrDigestMethod.String(digestMethod),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// RecordRetry records a retry attempt on the current span
func RecordRetry(ctx context.Context, attempt int, err error) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("retry",
		trace.WithAttributes(
			attribute.Int("retry.attempt", attempt),
			attribute.String("retry.error", err.Error()),
		),
	)
}

// EndSpanWithError ends a span with an error status
func EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
