package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/api/jsonrpcx"
	cqrsevents "github.com/danghamo/groupwatch/internal/cqrs"
	"github.com/danghamo/groupwatch/pkg/logger"
)

// SSEBroadcaster interface for broadcasting SSE messages
type SSEBroadcaster interface {
	BroadcastToAll(notification jsonrpcx.Notification)
	SetState(notification jsonrpcx.Notification)
}

// SSEEventHandler handles events and converts them to SSE notifications
type SSEEventHandler struct {
	sseBroadcaster SSEBroadcaster
	logger         *logger.Logger
}

// NewSSEEventHandler creates a new SSE event handler
func NewSSEEventHandler(sseBroadcaster SSEBroadcaster, logger *logger.Logger) *SSEEventHandler {
	return &SSEEventHandler{
		sseBroadcaster: sseBroadcaster,
		logger:         logger.WithComponent("sse-event-handler"),
	}
}

// HandleViewUpdatedEvent sends the change set to connected clients and keeps
// the full view for clients that connect later
func (h *SSEEventHandler) HandleViewUpdatedEvent(ctx context.Context, event *cqrsevents.ViewUpdatedEvent) error {
	h.logger.Debug("Handling view updated event",
		zap.String("groupId", event.GroupID),
		zap.Uint64("version", event.Version),
		zap.String("requestId", event.RequestID))

	h.sseBroadcaster.SetState(jsonrpcx.NewNotification(jsonrpcx.MethodViewState, map[string]interface{}{
		"group_id": event.GroupID,
		"version":  event.Version,
		"view":     event.View,
	}))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(jsonrpcx.MethodViewUpdated, map[string]interface{}{
		"group_id":  event.GroupID,
		"version":   event.Version,
		"changes":   event.Changes,
		"timestamp": event.Timestamp.Format(time.RFC3339),
	}))

	return nil
}

// HandleGeofenceAlertEvent broadcasts a raised alert
func (h *SSEEventHandler) HandleGeofenceAlertEvent(ctx context.Context, event *cqrsevents.GeofenceAlertEvent) error {
	h.logger.Debug("Handling geofence alert event",
		zap.String("memberId", event.MemberID),
		zap.Int("distance", event.DistanceMeters),
		zap.String("requestId", event.RequestID))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(jsonrpcx.MethodGeofenceAlert, map[string]interface{}{
		"group_id":     event.GroupID,
		"member_id":    event.MemberID,
		"display_name": event.DisplayName,
		"distance":     event.DistanceMeters,
		"title":        event.Title,
		"body":         event.Body,
		"tag":          event.Tag,
		"timestamp":    event.Timestamp.Format(time.RFC3339),
	}))

	return nil
}

// HandleSessionEndedEvent tells clients the session navigated away
func (h *SSEEventHandler) HandleSessionEndedEvent(ctx context.Context, event *cqrsevents.SessionEndedEvent) error {
	h.logger.Debug("Handling session ended event",
		zap.String("groupId", event.GroupID),
		zap.String("destination", event.Destination))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(jsonrpcx.MethodSessionEnded, map[string]interface{}{
		"group_id":    event.GroupID,
		"destination": event.Destination,
		"reason":      event.Reason,
		"timestamp":   event.Timestamp.Format(time.RFC3339),
	}))

	return nil
}
