package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/openboard/openboard/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes and consumes over a single AMQP channel. Queues
// are declared lazily on first use of a channel name.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	durable bool
	autoDel bool
}

// NewRabbitMQClient dials the broker and opens a channel.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("mq: rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		durable: cfg.QueueDurable,
		autoDel: cfg.QueueAutoDelete,
	}, nil
}

// Publish declares the queue if needed and publishes body to it. Event
// payloads are JSON, so the content type reflects that.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, body []byte, attrs map[string]string) (string, error) {
	if err := r.ensureQueue(channel); err != nil {
		return "", err
	}

	table := make(amqp.Table, len(attrs))
	for k, v := range attrs {
		table[k] = v
	}

	id := randomID()
	err := r.channel.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   id,
		Headers:     table,
		Body:        body,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Subscribe consumes the queue until ctx is canceled. Handler errors nack
// with requeue.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := r.ensureQueue(channel); err != nil {
		return err
	}

	tag := "openboard-" + randomID()
	deliveries, err := r.channel.Consume(channel, tag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(tag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("mq: rabbitmq deliveries closed")
			}
			msg := Message{
				ID:         d.MessageId,
				Body:       d.Body,
				Attributes: stringifyHeaders(d.Headers),
			}
			if err := handler(ctx, msg); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close shuts down the channel, then the connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) ensureQueue(name string) error {
	_, err := r.channel.QueueDeclare(name, r.durable, r.autoDel, false, false, nil)
	return err
}

// stringifyHeaders flattens an AMQP header table into string attributes.
// Non-string values survive a round trip through fmt-style printing, which
// is enough for the event metadata we attach.
func stringifyHeaders(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for k, v := range headers {
		switch val := v.(type) {
		case string:
			attrs[k] = val
		case []byte:
			attrs[k] = string(val)
		default:
			attrs[k] = fmt.Sprint(v)
		}
	}
	return attrs
}

func randomID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}
