// Package events publishes domain events through the message-queue layer.
// Publishing is best-effort: a broker failure is logged and never surfaced
// to the request that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/openboard/openboard/internal/logging"
	"github.com/openboard/openboard/internal/mq"
)

// Event types emitted by the service.
const (
	TypeUserSignedUp = "user.signed_up"
	TypeUserLoggedIn = "user.logged_in"
	TypeBoardCreated = "board.created"
	TypeBoardUpdated = "board.updated"
	TypeBoardDeleted = "board.deleted"
)

// Event is the JSON payload published for every domain event.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	UserID     int            `json:"userId,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher emits events to a single channel. A nil Publisher is valid and
// drops every event, so callers never need to branch on whether eventing
// is configured.
type Publisher struct {
	mq      *mq.Queue
	channel string
	log     logging.Logger
}

// NewPublisher constructs a Publisher over the given queue and channel.
func NewPublisher(queue *mq.Queue, channel string, log logging.Logger) *Publisher {
	return &Publisher{mq: queue, channel: channel, log: log}
}

// Publish serializes and emits the event. Errors are logged, not returned.
func (p *Publisher) Publish(ctx context.Context, eventType string, userID int, data map[string]any) {
	if p == nil || p.mq == nil {
		return
	}

	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		UserID:     userID,
		Data:       data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error(ctx, "marshal event", "type", eventType, "error", err)
		return
	}

	attrs := map[string]string{"type": eventType}
	if _, err := p.mq.Publish(ctx, p.channel, payload, attrs); err != nil {
		p.log.Warn(ctx, "publish event", "type", eventType, "error", err)
	}
}
