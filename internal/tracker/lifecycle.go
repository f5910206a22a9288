package tracker

import (
	"context"

	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/pkg/logger"
)

// Lifecycle holds the sharing toggle and deletes the group
type Lifecycle struct {
	sched    Scheduler
	api      GroupAPI
	logger   *logger.Logger
	groupID  string
	position *PositionAcquirer
	sync     *SyncLoop

	sharing  bool
	deleting bool

	SharingChanged signal[bool]
	// Deleted fires after the group was deleted remotely
	Deleted signal[struct{}]
}

// NewLifecycle creates the controller; sharing starts as given
func NewLifecycle(sched Scheduler, api GroupAPI, groupID string, position *PositionAcquirer, sync *SyncLoop, sharing bool, log *logger.Logger) *Lifecycle {
	return &Lifecycle{
		sched:    sched,
		api:      api,
		logger:   log.WithComponent("lifecycle"),
		groupID:  groupID,
		position: position,
		sync:     sync,
		sharing:  sharing,
	}
}

// Sharing reports whether fixes are forwarded
func (l *Lifecycle) Sharing() bool {
	return l.sharing
}

// SetSharing flips forwarding. The position watch keeps running either way.
// With a known position one report carries the new flag so peers see it.
func (l *Lifecycle) SetSharing(on bool) {
	if on == l.sharing {
		return
	}
	l.sharing = on
	l.logger.Info("Location sharing changed", zap.Bool("sharing", on))

	if pos, ok := l.position.Position(); ok {
		l.sync.Report(pos, on)
	}
	l.SharingChanged.Emit(on)
}

// OnFix forwards an accepted fix while sharing
func (l *Lifecycle) OnFix(pos shared.Position) {
	if l.sharing {
		l.sync.Report(pos, true)
	}
}

// Delete removes the group remotely. done runs on the loop with nil on
// success or a DELETE_FAILED error; on failure nothing is torn down.
func (l *Lifecycle) Delete(done func(error)) {
	if l.deleting {
		done(shared.NewDomainError(shared.ErrCodeDeleteFailed, "delete already in progress"))
		return
	}
	l.deleting = true
	groupID := l.groupID

	l.sched.Go(func(ctx context.Context) {
		err := l.api.DeleteGroup(ctx, groupID)
		l.sched.Post(func() {
			l.deleting = false
			if err != nil {
				l.logger.Error("Failed to delete group", zap.String("group_id", groupID), zap.Error(err))
				done(shared.NewDomainErrorf(shared.ErrCodeDeleteFailed, "failed to delete group: %v", err))
				return
			}
			l.logger.Info("Group deleted", zap.String("group_id", groupID))
			l.Deleted.Emit(struct{}{})
			done(nil)
		})
	})
}
