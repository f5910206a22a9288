package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/cqrs"
	"github.com/danghamo/groupwatch/internal/tracker"
	"github.com/danghamo/groupwatch/pkg/logger"
)

// viewSink forwards session views to the view publisher
type viewSink struct {
	views *cqrs.ViewPublisher
}

func (s viewSink) ViewChanged(view *tracker.View) {
	s.views.Enqueue(view)
}

// navigator ends the watch command. The session calls Navigate on its loop,
// so the event is published off the loop and the exit reason is handed to
// the command through ended.
type navigator struct {
	publisher cqrs.EventPublisher
	groupID   string
	logger    *logger.Logger

	once  sync.Once
	ended chan string
}

func newNavigator(publisher cqrs.EventPublisher, groupID string, log *logger.Logger) *navigator {
	return &navigator{
		publisher: publisher,
		groupID:   groupID,
		logger:    log.WithComponent("navigator"),
		ended:     make(chan string, 1),
	}
}

func (n *navigator) Navigate(dest tracker.Destination, reason string) {
	n.once.Do(func() {
		event := &cqrs.SessionEndedEvent{
			GroupID:     n.groupID,
			Destination: string(dest),
			Reason:      reason,
			Timestamp:   time.Now(),
			RequestID:   uuid.New().String(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := n.publisher.Publish(ctx, event); err != nil {
				n.logger.Warn("Failed to publish session ended", zap.Error(err))
			}
			n.ended <- reason
		}()
	})
}
