package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// W3C trace context keys. Outbox rows persist both values so the publisher can
// resume the booking's trace when it sends the event.
const (
	KeyTraceparent = "traceparent"
	KeyTracestate  = "tracestate"
)

// TraceContextStrings returns the current span's traceparent and tracestate,
// or empty strings when ctx carries no span.
func TraceContextStrings(ctx context.Context) (traceparent string, tracestate string) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.Get(KeyTraceparent), carrier.Get(KeyTracestate)
}

// ContextWithTraceContext is the inverse of TraceContextStrings. With both
// values empty ctx is returned as is.
func ContextWithTraceContext(ctx context.Context, traceparent string, tracestate string) context.Context {
	if traceparent == "" && tracestate == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{KeyTraceparent: traceparent}
	if tracestate != "" {
		carrier[KeyTracestate] = tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
