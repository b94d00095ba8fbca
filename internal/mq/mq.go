// Package mq is the broker-facing half of event delivery. A Backend adapts
// one concrete broker (RabbitMQ or Google Cloud Pub/Sub) to a common
// publish/subscribe surface; Queue is the thin handle the rest of the
// service holds on to.
package mq

import (
	"context"
	"errors"
)

// Message is a single delivery, normalized across brokers.
type Message struct {
	ID         string
	Body       []byte
	Attributes map[string]string
}

// Handler consumes one message. A non-nil error nacks the delivery so the
// broker can redeliver it.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented once per broker.
type Backend interface {
	Publish(ctx context.Context, channel string, body []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Queue dispatches to a single configured backend.
type Queue struct {
	backend Backend
}

// New wraps a backend. The backend must be non-nil; deployments that run
// without a broker skip constructing a Queue entirely.
func New(backend Backend) *Queue {
	return &Queue{backend: backend}
}

// Publish sends body to the named channel and returns the message id.
func (q *Queue) Publish(ctx context.Context, channel string, body []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("mq: channel is required")
	}
	return q.backend.Publish(ctx, channel, body, attrs)
}

// Subscribe blocks consuming the named channel until ctx is canceled or the
// backend fails.
func (q *Queue) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if channel == "" {
		return errors.New("mq: channel is required")
	}
	return q.backend.Subscribe(ctx, channel, handler)
}

// Close releases broker resources. Safe to call on a nil Queue.
func (q *Queue) Close() error {
	if q == nil || q.backend == nil {
		return nil
	}
	return q.backend.Close()
}
