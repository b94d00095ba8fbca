package mq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	published []Message
	channels  []string
	closed    bool
	inbox     []Message
	pubErr    error
}

func (f *fakeBackend) Publish(ctx context.Context, channel string, body []byte, attrs map[string]string) (string, error) {
	if f.pubErr != nil {
		return "", f.pubErr
	}
	f.channels = append(f.channels, channel)
	msg := Message{ID: "msg-1", Body: body, Attributes: attrs}
	f.published = append(f.published, msg)
	return msg.ID, nil
}

func (f *fakeBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	f.channels = append(f.channels, channel)
	for _, msg := range f.inbox {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestQueuePublish(t *testing.T) {
	backend := &fakeBackend{}
	queue := New(backend)

	id, err := queue.Publish(context.Background(), "events", []byte(`{"type":"board.created"}`), map[string]string{"type": "board.created"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.Len(t, backend.published, 1)
	assert.Equal(t, []string{"events"}, backend.channels)
	assert.Equal(t, "board.created", backend.published[0].Attributes["type"])
}

func TestQueuePublishRequiresChannel(t *testing.T) {
	queue := New(&fakeBackend{})

	_, err := queue.Publish(context.Background(), "", []byte("x"), nil)
	assert.Error(t, err)
}

func TestQueuePublishBackendError(t *testing.T) {
	backend := &fakeBackend{pubErr: errors.New("broker down")}
	queue := New(backend)

	_, err := queue.Publish(context.Background(), "events", []byte("x"), nil)
	assert.ErrorContains(t, err, "broker down")
}

func TestQueueSubscribe(t *testing.T) {
	backend := &fakeBackend{inbox: []Message{
		{ID: "a", Body: []byte("one")},
		{ID: "b", Body: []byte("two")},
	}}
	queue := New(backend)

	var seen []string
	err := queue.Subscribe(context.Background(), "events", func(ctx context.Context, msg Message) error {
		seen = append(seen, string(msg.Body))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, seen)
}

func TestQueueSubscribeRequiresChannel(t *testing.T) {
	queue := New(&fakeBackend{})

	err := queue.Subscribe(context.Background(), "", func(ctx context.Context, msg Message) error { return nil })
	assert.Error(t, err)
}

func TestQueueClose(t *testing.T) {
	backend := &fakeBackend{}
	queue := New(backend)

	require.NoError(t, queue.Close())
	assert.True(t, backend.closed)

	var nilQueue *Queue
	assert.NoError(t, nilQueue.Close())
}

func TestStringifyHeaders(t *testing.T) {
	attrs := stringifyHeaders(amqp.Table{
		"type":  "board.created",
		"raw":   []byte("bytes"),
		"count": int32(3),
	})
	assert.Equal(t, "board.created", attrs["type"])
	assert.Equal(t, "bytes", attrs["raw"])
	assert.Equal(t, "3", attrs["count"])

	assert.Nil(t, stringifyHeaders(nil))
	assert.Nil(t, stringifyHeaders(amqp.Table{}))
}
