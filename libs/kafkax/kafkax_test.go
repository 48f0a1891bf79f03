package kafkax

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func header(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if got := SplitBrokers(""); len(got) != 0 {
		t.Fatalf("expected no brokers, got %v", got)
	}
}

func TestEventHeadersCarryTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	headers := EventHeaders(ctx, "evt-1", "booking.appointment.booked.v1")
	if header(headers, HeaderEventID) != "evt-1" || header(headers, HeaderEventType) != "booking.appointment.booked.v1" {
		t.Fatalf("unexpected event headers %v", headers)
	}
	if got := header(headers, "traceparent"); got != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("unexpected traceparent %q", got)
	}

	plain := EventHeaders(context.Background(), "evt-2", "x")
	if len(plain) != 2 {
		t.Fatalf("expected no trace headers without a span, got %v", plain)
	}
}

func TestReadyCheck(t *testing.T) {
	if err := ReadyCheck("")(context.Background()); err == nil {
		t.Fatalf("expected error without brokers")
	}

	var tried []string
	down := func(_ context.Context, _, addr string) (*kafka.Conn, error) {
		tried = append(tried, addr)
		return nil, errors.New("connection refused")
	}
	err := readyCheck("a:9092,b:9092", down)(context.Background())
	if err == nil || !strings.Contains(err.Error(), "a:9092") || !strings.Contains(err.Error(), "b:9092") {
		t.Fatalf("expected both brokers in error, got %v", err)
	}
	if len(tried) != 2 {
		t.Fatalf("expected every broker tried, got %v", tried)
	}
}
