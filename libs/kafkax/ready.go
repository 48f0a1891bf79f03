package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReadyCheck reports ready when at least one configured broker accepts a
// connection. The outbox writer fails over between brokers the same way.
func ReadyCheck(brokers string) func(context.Context) error {
	return readyCheck(brokers, (&kafka.Dialer{Timeout: 2 * time.Second}).DialContext)
}

type dialFunc func(ctx context.Context, network, address string) (*kafka.Conn, error)

func readyCheck(brokers string, dial dialFunc) func(context.Context) error {
	return func(ctx context.Context) error {
		list := SplitBrokers(brokers)
		if len(list) == 0 {
			return errors.New("kafka brokers not configured")
		}
		var errs []error
		for _, addr := range list {
			conn, err := dial(ctx, "tcp", addr)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", addr, err))
				continue
			}
			_ = conn.Close()
			return nil
		}
		return errors.Join(errs...)
	}
}
