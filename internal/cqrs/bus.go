package cqrs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	wcqrs "github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/pkg/logger"
)

// Transport drivers
const (
	DriverGoChannel = "gochannel"
	DriverRedis     = "redis"
)

const topicPrefix = "groupwatch-events."

// BusConfig configures the event bus
type BusConfig struct {
	Driver string
	// Redis is required for DriverRedis
	Redis redis.UniversalClient
	// ConsumerGroup names the redis stream consumer group. It must stay the
	// same across restarts so pending entries are resumed, not orphaned.
	// Defaults to groupwatch-<hostname>.
	ConsumerGroup string
}

func consumerGroup(cfg BusConfig) string {
	if cfg.ConsumerGroup != "" {
		return cfg.ConsumerGroup
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return "groupwatch-" + hostname
}

// Bus bundles the watermill publisher, router, event bus and processor
type Bus struct {
	logger         *logger.Logger
	publisher      message.Publisher
	router         *message.Router
	eventBus       *wcqrs.EventBus
	eventProcessor *wcqrs.EventProcessor
}

// NewBus creates an event bus over the configured transport
func NewBus(cfg BusConfig, log *logger.Logger) (*Bus, error) {
	wmLogger := newWatermillLogger(log)

	var (
		publisher  message.Publisher
		subscriber message.Subscriber
	)

	switch cfg.Driver {
	case DriverGoChannel, "":
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		publisher, subscriber = pubSub, pubSub
	case DriverRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis client required for redis event driver")
		}
		var err error
		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: cfg.Redis},
			wmLogger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}

		subscriber, err = redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        cfg.Redis,
				ConsumerGroup: consumerGroup(cfg),
			},
			wmLogger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown event driver: %s", cfg.Driver)
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 5 * time.Second,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	eventBus, err := wcqrs.NewEventBusWithConfig(
		publisher,
		wcqrs.EventBusConfig{
			GeneratePublishTopic: func(params wcqrs.GenerateEventPublishTopicParams) (string, error) {
				return topicPrefix + params.EventName, nil
			},
			Marshaler: wcqrs.JSONMarshaler{},
			Logger:    wmLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	eventProcessor, err := wcqrs.NewEventProcessorWithConfig(
		router,
		wcqrs.EventProcessorConfig{
			GenerateSubscribeTopic: func(params wcqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
				return topicPrefix + params.EventName, nil
			},
			SubscriberConstructor: func(params wcqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
				return subscriber, nil
			},
			Marshaler: wcqrs.JSONMarshaler{},
			Logger:    wmLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event processor: %w", err)
	}

	return &Bus{
		logger:         log.WithComponent("event-bus"),
		publisher:      publisher,
		router:         router,
		eventBus:       eventBus,
		eventProcessor: eventProcessor,
	}, nil
}

// Publish publishes an event
func (b *Bus) Publish(ctx context.Context, event interface{}) error {
	return b.eventBus.Publish(ctx, event)
}

// AddHandlers registers event handlers; must be called before Run
func (b *Bus) AddHandlers(handlers ...wcqrs.EventHandler) error {
	return b.eventProcessor.AddHandlers(handlers...)
}

// Run runs the router until ctx is done
func (b *Bus) Run(ctx context.Context) error {
	b.logger.Info("Starting event router")
	return b.router.Run(ctx)
}

// Running is closed once handlers are subscribed
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and the transport
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		b.logger.Error("Router shutdown error", zap.Error(err))
		return err
	}
	if err := b.publisher.Close(); err != nil {
		b.logger.Warn("Publisher close error", zap.Error(err))
	}
	return nil
}

// NewEventHandler wraps a typed handler function for AddHandlers
func NewEventHandler[T any](name string, handle func(ctx context.Context, event *T) error) wcqrs.EventHandler {
	return wcqrs.NewEventHandler(name, handle)
}

var _ watermill.LoggerAdapter = (*watermillLogger)(nil)
