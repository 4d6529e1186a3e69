package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sitesiege/sitesiege/internal/target"
)

// Attribute keys set on request spans besides the HTTP semantic conventions.
const (
	AttrURLOrigin = attribute.Key("sitesiege.url.origin")
	AttrAsset     = attribute.Key("sitesiege.url.asset")
)

// StartRequestSpan starts a client span for a GET of u, named "GET <path>".
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, u target.URL) (context.Context, trace.Span) {
	return tracer.Start(ctx, http.MethodGet+" "+u.Path(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.full", u.Raw),
			attribute.String("server.address", u.Host()),
			AttrURLOrigin.String(string(u.Origin)),
			AttrAsset.Bool(u.IsAsset()),
		),
	)
}

// EndRequestSpan records the response and ends span. err is a failure that
// happened before a status was received; status >= 400 also marks the span
// as failed.
func EndRequestSpan(span trace.Span, status int, bytes int64, err error) {
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= 400:
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
	default:
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		span.SetStatus(codes.Ok, "")
	}
	if bytes > 0 {
		span.SetAttributes(attribute.Int64("http.response.body.size", bytes))
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
