package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels payment lifecycle events are published on.
const (
	ChannelPaymentCompleted = "payments.completed"
	ChannelPaymentFailed    = "payments.failed"
	ChannelPaymentExpired   = "payments.expired"
)
