package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type watermillPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewWatermillPublisher publishes events as JSON messages on the event type topic
func NewWatermillPublisher(publisher message.Publisher, logger *slog.Logger) EventPublisher {
	return &watermillPublisher{publisher: publisher, logger: logger}
}

func (p *watermillPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("type", event.Type)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(event.Type, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	p.logger.DebugContext(ctx, "Event published", "event_id", event.ID, "type", event.Type)
	return nil
}

func (p *watermillPublisher) Close() error {
	return p.publisher.Close()
}

// BusConfig selects the event transport
type BusConfig struct {
	KafkaBrokers []string
}

// NewEventBus returns a Kafka publisher when brokers are configured and an
// in-process channel with a logging consumer otherwise.
func NewEventBus(ctx context.Context, config BusConfig, logger *slog.Logger) (EventPublisher, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	if len(config.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   config.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		logger.Info("Publishing events to kafka", "brokers", config.KafkaBrokers)
		return NewWatermillPublisher(publisher, logger), nil
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
	if err := StartLoggingConsumer(ctx, pubSub, AllTopics, logger); err != nil {
		pubSub.Close()
		return nil, err
	}
	return NewWatermillPublisher(pubSub, logger), nil
}

// StartLoggingConsumer logs and acks every message on topics until ctx is done
func StartLoggingConsumer(ctx context.Context, subscriber message.Subscriber, topics []string, logger *slog.Logger) error {
	for _, topic := range topics {
		messages, err := subscriber.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}

		go func(topic string, messages <-chan *message.Message) {
			for msg := range messages {
				var event Event
				if err := json.Unmarshal(msg.Payload, &event); err != nil {
					logger.Warn("Dropping malformed event", "topic", topic, "error", err)
					msg.Ack()
					continue
				}
				logger.Info("Domain event",
					"topic", topic,
					"event_id", event.ID,
					"timestamp", event.Timestamp,
					"data", event.Data)
				msg.Ack()
			}
		}(topic, messages)
	}
	return nil
}
