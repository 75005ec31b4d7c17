package service

import (
	"context"
	"fmt"

	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/internal/repository/specification"
	"vision-assistant-be/internal/repository/unitofwork"
	"vision-assistant-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerModule = "CONSUMER"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// EventForwarder ships events out of the process, e.g. to NATS JetStream.
type EventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	forwarder  EventForwarder
	logger     logger.ILogger
}

// NewConsumerService accepts a nil forwarder when no broker is configured.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	forwarder EventForwarder,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		uowFactory: uowFactory,
		forwarder:  forwarder,
		logger:     log,
	}
}

// Consume subscribes and handles messages until ctx is done or the subscriber closes.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			cs.processMessage(ctx, msg)
		}
	}
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	event, err := events.Unmarshal(msg.Payload)
	if err != nil {
		cs.logger.Error(consumerModule, "Dropping malformed event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		// Ack invalid messages to prevent infinite redelivery
		msg.Ack()
		return
	}

	if event.EventType() == events.TurnCompleted {
		if err := cs.persistTitle(ctx, event.String("threadId")); err != nil {
			cs.logger.Warn(consumerModule, "Failed to persist session title", map[string]interface{}{
				"thread_id": event.String("threadId"),
				"error":     err.Error(),
			})
		}
	}

	if cs.forwarder != nil {
		if err := cs.forwarder.Publish(ctx, event); err != nil {
			cs.logger.Warn(consumerModule, "Failed to forward event", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}

	msg.Ack()
}

func (cs *consumerService) persistTitle(ctx context.Context, threadID string) error {
	if threadID == "" {
		return fmt.Errorf("event without threadId")
	}
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	thread, err := uow.ThreadRepository().FindOne(ctx, specification.ByThreadID{ThreadID: threadID})
	if err != nil {
		return err
	}
	if thread == nil {
		return nil
	}

	first, err := uow.MessageRepository().FindOne(ctx,
		specification.ByThreadID{ThreadID: threadID},
		specification.ByRole{Role: entity.RoleUser},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return err
	}
	if first == nil {
		return nil
	}

	_, err = uow.ThreadRepository().UpdateTitleIfDefault(ctx, threadID, DeriveTitle(first.Content, thread.CreatedAt))
	return err
}
