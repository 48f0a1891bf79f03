package kafkax

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Header keys stamped on every published domain event.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// EventHeaders builds the headers of one domain event message: its id, its type
// and the W3C trace context carried by ctx.
func EventHeaders(ctx context.Context, eventID, eventType string) []kafka.Header {
	carrier := &headerCarrier{headers: []kafka.Header{
		{Key: HeaderEventID, Value: []byte(eventID)},
		{Key: HeaderEventType, Value: []byte(eventType)},
	}}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

// SplitBrokers parses a comma separated KAFKA_BROKERS value.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// headerCarrier adapts message headers to the otel propagation API. Set
// replaces an existing key.
type headerCarrier struct {
	headers []kafka.Header
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key string, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}
