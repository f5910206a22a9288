package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/danghamo/groupwatch/internal/cqrs"
)

// EventPublisher publishes events onto the event bus
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}

// BusNotifier turns notifications into GeofenceAlertEvent messages so view
// clients receive them next to the view stream
type BusNotifier struct {
	publisher EventPublisher
	groupID   string
}

// NewBusNotifier creates a notifier publishing for groupID
func NewBusNotifier(publisher EventPublisher, groupID string) *BusNotifier {
	return &BusNotifier{publisher: publisher, groupID: groupID}
}

func (n *BusNotifier) Notify(ctx context.Context, msg Notification) error {
	return n.publisher.Publish(ctx, &cqrs.GeofenceAlertEvent{
		GroupID:        n.groupID,
		MemberID:       msg.MemberID,
		DisplayName:    msg.DisplayName,
		DistanceMeters: msg.DistanceMeters,
		Title:          msg.Title,
		Body:           msg.Body,
		Tag:            msg.Tag,
		Timestamp:      time.Now(),
		RequestID:      uuid.New().String(),
	})
}
