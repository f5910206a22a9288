package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/pkg/logger"
)

// tokenTimeout bounds every wait on a broker acknowledgement. A reconnecting
// client may never complete a token.
const tokenTimeout = 5 * time.Second

// MQTTConfig configures the broker connection
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// MQTTSource receives fixes published by a tracking device on
// <prefix>/<memberId>/fix. A payload of {"error": "<reason>"} reports an
// acquisition failure.
type MQTTSource struct {
	client       mqtt.Client
	topic        string
	logger       *logger.Logger
	tokenTimeout time.Duration
	lostMu   sync.Mutex
	lostSink func(error)
}

// fixMessage is the wire format of a device fix
type fixMessage struct {
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// NewMQTT connects to the broker
func NewMQTT(cfg MQTTConfig, memberID string, log *logger.Logger) (*MQTTSource, error) {
	s := &MQTTSource{
		topic:        FixTopic(cfg.TopicPrefix, memberID),
		logger:       log.WithComponent("mqtt-source"),
		tokenTimeout: tokenTimeout,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.connectionLost(err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	s.client = client

	s.logger.Info("MQTT source connected",
		zap.String("broker", cfg.Broker),
		zap.String("topic", s.topic))
	return s, nil
}

// NewMQTTWithClient wraps an existing client
func NewMQTTWithClient(client mqtt.Client, topicPrefix, memberID string, log *logger.Logger) *MQTTSource {
	return &MQTTSource{
		client:       client,
		topic:        FixTopic(topicPrefix, memberID),
		logger:       log.WithComponent("mqtt-source"),
		tokenTimeout: tokenTimeout,
	}
}

// FixTopic returns the topic a member's device publishes to
func FixTopic(prefix, memberID string) string {
	return fmt.Sprintf("%s/%s/fix", prefix, memberID)
}

// Watch subscribes to the member's fix topic
func (s *MQTTSource) Watch(_ context.Context, opts Options, onFix FixHandler, onError ErrorHandler) (Subscription, error) {
	sub := &mqttSubscription{source: s, opts: opts, onFix: onFix, onError: onError}
	sub.dog = newWatchdog(opts.Timeout, func() { sub.fail(ErrTimeout()) })

	s.setLostSink(func(err error) { sub.fail(ErrUnavailable(err.Error())) })

	token := s.client.Subscribe(s.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		sub.handle(msg.Payload(), msg.Retained())
	})
	var err error
	if !token.WaitTimeout(s.tokenTimeout) {
		err = fmt.Errorf("no subscribe acknowledgement within %s", s.tokenTimeout)
	} else {
		err = token.Error()
	}
	if err != nil {
		sub.mu.Lock()
		sub.cancelled = true
		sub.mu.Unlock()
		sub.dog.stop()
		s.setLostSink(nil)
		// the late acknowledgement must not leave a live subscription behind
		go s.unsubscribe()
		return nil, shared.WrapDomainError(err, shared.ErrCodePositionUnavailable, "mqtt subscribe")
	}
	return sub, nil
}

// Close disconnects from the broker
func (s *MQTTSource) Close() {
	s.client.Disconnect(250)
}

func (s *MQTTSource) setLostSink(fn func(error)) {
	s.lostMu.Lock()
	s.lostSink = fn
	s.lostMu.Unlock()
}

func (s *MQTTSource) connectionLost(err error) {
	s.logger.Warn("MQTT connection lost", zap.Error(err))
	s.lostMu.Lock()
	sink := s.lostSink
	s.lostMu.Unlock()
	if sink != nil {
		sink(err)
	}
}

type mqttSubscription struct {
	source  *MQTTSource
	opts    Options
	onFix   FixHandler
	onError ErrorHandler
	dog     *watchdog

	mu        sync.Mutex
	cancelled bool
}

func (s *mqttSubscription) handle(payload []byte, retained bool) {
	if s.isCancelled() {
		return
	}
	// a retained message is the broker's cached reading
	if retained && s.opts.MaximumAge == 0 {
		return
	}

	var msg fixMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.source.logger.Warn("Discarding malformed fix", zap.Error(err))
		return
	}

	if msg.Error != "" {
		s.fail(ErrorForReason(msg.Error))
		return
	}
	if msg.Lat == nil || msg.Lng == nil {
		s.source.logger.Warn("Discarding fix without coordinates")
		return
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if s.opts.MaximumAge > 0 && time.Since(msg.Timestamp) > s.opts.MaximumAge {
		return
	}

	fix := Fix{
		Position:  shared.NewPosition(*msg.Lat, *msg.Lng),
		Accuracy:  msg.Accuracy,
		Timestamp: msg.Timestamp,
	}
	if !fix.Position.Valid() {
		s.source.logger.Warn("Discarding out of range fix", zap.Stringer("position", fix.Position))
		return
	}

	s.dog.reset()
	s.onFix(fix)
}

func (s *mqttSubscription) fail(err error) {
	if s.isCancelled() {
		return
	}
	s.onError(err)
}

func (s *mqttSubscription) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Cancel unsubscribes; later calls do nothing
func (s *mqttSubscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()

	s.dog.stop()
	s.source.setLostSink(nil)
	go s.source.unsubscribe()
}

// unsubscribe waits a bounded time for the broker and only logs the outcome
func (s *MQTTSource) unsubscribe() {
	token := s.client.Unsubscribe(s.topic)
	if !token.WaitTimeout(s.tokenTimeout) {
		s.logger.Warn("MQTT unsubscribe not acknowledged", zap.Duration("timeout", s.tokenTimeout))
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Warn("MQTT unsubscribe failed", zap.Error(err))
	}
}
