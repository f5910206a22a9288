// Package notify dispatches user-facing notifications raised by the tracker.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/pkg/logger"
)

// Notification is one message for the notification layer. Tag lets the
// receiving layer collapse duplicates that are still pending.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`

	// Optional geofence details for consumers that render more than text
	MemberID       string `json:"memberId,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	DistanceMeters int    `json:"distance,omitempty"`
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogNotifier writes notifications to the log. It is the default when no
// desktop or push integration is configured.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log notifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.WithComponent("notifier")}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.logger.Warn(msg.Title,
		zap.String("body", msg.Body),
		zap.String("tag", msg.Tag),
	)
	return nil
}

// Multi fans a notification out to every notifier. All notifiers are tried;
// the errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for i, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
