package cqrs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/pkg/logger"
)

// EventPublisher interface for publishing events
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}

// ViewPublisher turns successive views into ViewUpdatedEvent messages in
// order. Each event's Changes is relative to the previous published view, so
// a view dropped under back pressure never breaks the patch chain.
type ViewPublisher struct {
	publisher EventPublisher
	groupID   string
	logger    *logger.Logger
	updates   chan json.RawMessage

	last    json.RawMessage
	version uint64
}

// NewViewPublisher creates a publisher for groupID
func NewViewPublisher(publisher EventPublisher, groupID string, log *logger.Logger) *ViewPublisher {
	return &ViewPublisher{
		publisher: publisher,
		groupID:   groupID,
		logger:    log.WithComponent("view-publisher").WithGroupID(groupID),
		updates:   make(chan json.RawMessage, 64),
	}
}

// Enqueue schedules view for publishing without blocking
func (p *ViewPublisher) Enqueue(view interface{}) {
	data, err := json.Marshal(view)
	if err != nil {
		p.logger.Error("Failed to marshal view", zap.Error(err))
		return
	}

	select {
	case p.updates <- data:
	default:
		p.logger.Warn("View update channel full, dropping view")
	}
}

// Run publishes queued views until ctx is done
func (p *ViewPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-p.updates:
			p.publish(ctx, data)
		}
	}
}

func (p *ViewPublisher) publish(ctx context.Context, data json.RawMessage) {
	changes, err := Changes(p.last, data)
	if err != nil {
		p.logger.Error("Failed to compute view changes", zap.Error(err))
		return
	}
	if changes == nil {
		return
	}

	p.version++
	event := &ViewUpdatedEvent{
		GroupID:   p.groupID,
		Version:   p.version,
		View:      data,
		Changes:   changes,
		Timestamp: time.Now(),
		RequestID: uuid.New().String(),
	}

	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("Failed to publish view update",
			zap.Uint64("version", p.version),
			zap.Error(err))
		return
	}
	p.last = data
}
