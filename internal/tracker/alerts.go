package tracker

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/notify"
	"github.com/danghamo/groupwatch/pkg/logger"
)

const (
	DefaultAlertCooldown  = 120 * time.Second
	DefaultAlertQueueSize = 5

	alertTitle = "Geofence Alert"
)

// AlertManager gates alerts by a per-member cooldown and keeps the recent
// alerts queue, newest first
type AlertManager struct {
	sched    Scheduler
	notifier notify.Notifier
	logger   *logger.Logger
	cooldown time.Duration
	capacity int

	history group.AlertHistory
	queue   []group.AlertRecord

	QueueChanged signal[[]group.AlertRecord]
}

// NewAlertManager creates an alert manager
func NewAlertManager(sched Scheduler, notifier notify.Notifier, cooldown time.Duration, capacity int, log *logger.Logger) *AlertManager {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	if capacity <= 0 {
		capacity = DefaultAlertQueueSize
	}
	return &AlertManager{
		sched:    sched,
		notifier: notifier,
		logger:   log.WithComponent("alerts"),
		cooldown: cooldown,
		capacity: capacity,
		history:  group.NewAlertHistory(),
	}
}

// Breach records that member is distance meters away, beyond the radius.
// It returns the raised record, or false when the member is cooling down.
func (a *AlertManager) Breach(member group.MemberLocation, distance float64) (group.AlertRecord, bool) {
	now := a.sched.Now()
	if !a.history.CooledDown(member.MemberID, now, a.cooldown) {
		return group.AlertRecord{}, false
	}

	record := group.AlertRecord{
		MemberID:       member.MemberID,
		DisplayName:    member.DisplayName,
		DistanceMeters: int(math.Round(distance)),
		Timestamp:      now,
	}

	a.history = a.history.With(member.MemberID, now)

	next := make([]group.AlertRecord, 0, a.capacity)
	next = append(next, record)
	for _, r := range a.queue {
		if len(next) == a.capacity {
			break
		}
		next = append(next, r)
	}
	a.queue = next

	a.logger.Info("Member left the tracking range",
		zap.String("member_id", record.MemberID),
		zap.Int("distance", record.DistanceMeters))

	a.dispatch(record)
	a.QueueChanged.Emit(a.Queue())
	return record, true
}

// Dismiss removes the queue entry at index. History is left as is.
func (a *AlertManager) Dismiss(index int) bool {
	if index < 0 || index >= len(a.queue) {
		return false
	}
	next := make([]group.AlertRecord, 0, len(a.queue)-1)
	next = append(next, a.queue[:index]...)
	next = append(next, a.queue[index+1:]...)
	a.queue = next
	a.QueueChanged.Emit(a.Queue())
	return true
}

// DismissKey removes the queue entry with the given key
func (a *AlertManager) DismissKey(key string) bool {
	for i, record := range a.queue {
		if record.Key() == key {
			return a.Dismiss(i)
		}
	}
	return false
}

// Queue returns a copy of the recent alerts, newest first
func (a *AlertManager) Queue() []group.AlertRecord {
	out := make([]group.AlertRecord, len(a.queue))
	copy(out, a.queue)
	return out
}

// History returns the cooldown bookkeeping
func (a *AlertManager) History() group.AlertHistory {
	return a.history
}

// AlertNotification builds the notification for a raised alert
func AlertNotification(record group.AlertRecord) notify.Notification {
	return notify.Notification{
		Title:          alertTitle,
		Body:           fmt.Sprintf("%s has left the tracking range! (%dm away)", record.DisplayName, record.DistanceMeters),
		Tag:            "geofence-" + record.MemberID,
		MemberID:       record.MemberID,
		DisplayName:    record.DisplayName,
		DistanceMeters: record.DistanceMeters,
	}
}

func (a *AlertManager) dispatch(record group.AlertRecord) {
	if a.notifier == nil {
		return
	}
	n := AlertNotification(record)
	a.sched.Go(func(ctx context.Context) {
		if err := a.notifier.Notify(ctx, n); err != nil {
			a.logger.Warn("Failed to dispatch notification",
				zap.String("tag", n.Tag),
				zap.Error(err))
		}
	})
}
