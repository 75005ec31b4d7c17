package service

import (
	"context"
	"fmt"

	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IPublisherService interface {
	Publish(ctx context.Context, event events.Event) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (p *publisherService) Publish(ctx context.Context, event events.Event) error {
	payload, err := events.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", event.EventType())

	return p.publisher.Publish(p.topicName, msg)
}

// publishQuietly never fails the caller; events are notifications only.
func publishQuietly(ctx context.Context, pub IPublisherService, log logger.ILogger, eventType string, data map[string]interface{}) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, events.New(eventType, data)); err != nil {
		log.Warn("EVENTS", "Failed to publish event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}
