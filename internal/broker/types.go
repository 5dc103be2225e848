package broker

import (
	"context"

	"beacon/pkg/models"
)

type Producer interface {
	// Publish sends a resolved notification, keyed by its identifier.
	Publish(ctx context.Context, topic string, n models.Notification) error
	// PublishPush sends a raw inbound push, e.g. to the input topic or a DLQ.
	PublishPush(ctx context.Context, topic string, push models.InboundPush) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, push models.InboundPush) error
