package cqrs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/groupwatch/pkg/logger"
)

// MockEventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
	mu              sync.Mutex
	PublishedEvents []interface{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, event interface{}) error {
	m.mu.Lock()
	m.PublishedEvents = append(m.PublishedEvents, event)
	m.mu.Unlock()
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) events() []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interface{}(nil), m.PublishedEvents...)
}

func TestChanges(t *testing.T) {
	changes, err := Changes(nil, []byte(`{"sharing":true,"radius":100}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"sharing": true, "radius": float64(100)}, changes)

	changes, err = Changes([]byte(`{"sharing":true,"radius":100}`), []byte(`{"sharing":false,"radius":100}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"sharing": false}, changes)

	changes, err = Changes([]byte(`{"error":"x"}`), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"error": nil}, changes)

	changes, err = Changes([]byte(`{"a":1}`), []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Nil(t, changes)
}

func TestViewPublisher_PublishesChangesInOrder(t *testing.T) {
	publisher := &MockEventPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	vp := NewViewPublisher(publisher, "G1", logger.NewNop())
	vp.Enqueue(map[string]interface{}{"sharing": true, "radius": 100})
	vp.Enqueue(map[string]interface{}{"sharing": true, "radius": 100})
	vp.Enqueue(map[string]interface{}{"sharing": false, "radius": 100})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go vp.Run(ctx)

	require.Eventually(t, func() bool { return len(publisher.events()) == 2 }, time.Second, 5*time.Millisecond)

	events := publisher.events()
	first := events[0].(*ViewUpdatedEvent)
	second := events[1].(*ViewUpdatedEvent)

	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, "G1", first.GroupID)
	assert.Equal(t, uint64(2), second.Version)
	assert.Equal(t, map[string]interface{}{"sharing": false}, second.Changes)
	assert.JSONEq(t, `{"sharing":false,"radius":100}`, string(second.View))
}

func TestBus_GoChannelDeliversEvents(t *testing.T) {
	bus, err := NewBus(BusConfig{Driver: DriverGoChannel}, logger.NewNop())
	require.NoError(t, err)

	received := make(chan *GeofenceAlertEvent, 1)
	err = bus.AddHandlers(NewEventHandler("test-geofence-alert", func(_ context.Context, event *GeofenceAlertEvent) error {
		received <- event
		return nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()
	defer bus.Close()

	select {
	case <-bus.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("router did not start")
	}

	require.NoError(t, bus.Publish(ctx, &GeofenceAlertEvent{GroupID: "G1", MemberID: "m2", DistanceMeters: 150}))

	select {
	case event := <-received:
		assert.Equal(t, "m2", event.MemberID)
		assert.Equal(t, 150, event.DistanceMeters)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNewBus_UnknownDriver(t *testing.T) {
	_, err := NewBus(BusConfig{Driver: "kafka"}, logger.NewNop())
	assert.Error(t, err)

	_, err = NewBus(BusConfig{Driver: DriverRedis}, logger.NewNop())
	assert.Error(t, err)
}

func TestConsumerGroup_StableAcrossRuns(t *testing.T) {
	assert.Equal(t, "groupwatch-member_1", consumerGroup(BusConfig{ConsumerGroup: "groupwatch-member_1"}))

	first := consumerGroup(BusConfig{})
	assert.Equal(t, first, consumerGroup(BusConfig{}))
	assert.True(t, strings.HasPrefix(first, "groupwatch-"))
}
