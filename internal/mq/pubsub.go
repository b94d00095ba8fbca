package mq

import (
	"context"
	"errors"

	"cloud.google.com/go/pubsub"
	"github.com/openboard/openboard/config"
	"google.golang.org/api/option"
)

// PubSubClient maps channels onto Pub/Sub topics. Each subscriber reads
// from a subscription named after the topic plus a configured suffix.
type PubSubClient struct {
	client *pubsub.Client
	suffix string
}

// NewPubSubClient builds a Pub/Sub client for the configured project.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("mq: pubsub project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	return &PubSubClient{client: client, suffix: suffix}, nil
}

// Publish creates the topic on first use and publishes body to it.
func (p *PubSubClient) Publish(ctx context.Context, channel string, body []byte, attrs map[string]string) (string, error) {
	topic, err := p.topicFor(ctx, channel)
	if err != nil {
		return "", err
	}
	res := topic.Publish(ctx, &pubsub.Message{Data: body, Attributes: attrs})
	return res.Get(ctx)
}

// Subscribe receives from the channel's subscription until ctx is canceled.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	topic, err := p.topicFor(ctx, channel)
	if err != nil {
		return err
	}
	sub, err := p.subscriptionFor(ctx, channel, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		msg := Message{ID: m.ID, Body: m.Data, Attributes: m.Attributes}
		if err := handler(ctx, msg); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
}

// Close closes the underlying client.
func (p *PubSubClient) Close() error {
	return p.client.Close()
}

func (p *PubSubClient) topicFor(ctx context.Context, channel string) (*pubsub.Topic, error) {
	topic := p.client.Topic(channel)
	ok, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return p.client.CreateTopic(ctx, channel)
	}
	return topic, nil
}

func (p *PubSubClient) subscriptionFor(ctx context.Context, channel string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	name := channel + p.suffix
	sub := p.client.Subscription(name)
	ok, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic})
	}
	return sub, nil
}
