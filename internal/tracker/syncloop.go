package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/groupapi"
	"github.com/danghamo/groupwatch/pkg/logger"
)

// GroupAPI is the remote group service as the tracker uses it
type GroupAPI interface {
	GetLocations(ctx context.Context, groupID string) ([]group.MemberLocation, error)
	UpdateLocation(ctx context.Context, groupID string, update groupapi.LocationUpdate) error
	DeleteGroup(ctx context.Context, groupID string) error
}

// SyncLoop polls the group snapshot and reports the local position
type SyncLoop struct {
	sched    Scheduler
	api      GroupAPI
	logger   *logger.Logger
	groupID  string
	memberID string

	interval  time.Duration
	stopTimer Cancel
	running   bool

	// seq tags each fetch; a completion is applied only when newer than
	// the one the current snapshot came from
	seq        uint64
	appliedSeq uint64
	snapshot   *group.Snapshot
	terminal   error

	// at most one report is in flight; newer ones wait in pending and
	// replace each other
	reporting bool
	pending   *groupapi.LocationUpdate

	SnapshotChanged signal[*group.Snapshot]
	// GroupGone fires once when the group is reported missing or expired
	GroupGone signal[error]
}

// NewSyncLoop creates a sync loop for memberID
func NewSyncLoop(sched Scheduler, api GroupAPI, memberID string, log *logger.Logger) *SyncLoop {
	return &SyncLoop{
		sched:    sched,
		api:      api,
		memberID: memberID,
		logger:   log.WithComponent("sync-loop"),
		snapshot: group.EmptySnapshot(),
	}
}

// Start fetches immediately, then every interval
func (s *SyncLoop) Start(groupID string, interval time.Duration) {
	s.Stop()
	s.groupID = groupID
	s.interval = interval
	s.running = true

	s.fetch()
	s.arm()
}

// SetInterval replaces the poll cadence
func (s *SyncLoop) SetInterval(interval time.Duration) {
	if interval <= 0 || interval == s.interval {
		return
	}
	s.interval = interval
	if !s.running {
		return
	}
	s.disarm()
	s.arm()
	s.logger.Info("Refresh interval changed", zap.Duration("interval", interval))
}

// Interval returns the poll cadence
func (s *SyncLoop) Interval() time.Duration {
	return s.interval
}

// Stop cancels the poll timer. In-flight fetches are ignored when they land.
func (s *SyncLoop) Stop() {
	s.running = false
	s.disarm()
}

// Snapshot returns the last known good snapshot
func (s *SyncLoop) Snapshot() *group.Snapshot {
	return s.snapshot
}

// Err returns the terminal error, if any
func (s *SyncLoop) Err() error {
	return s.terminal
}

// Report forwards a position. Failures are logged and not retried; the next
// fix supersedes it. While a report is in flight only the latest one waits.
func (s *SyncLoop) Report(pos shared.Position, sharing bool) {
	if s.groupID == "" {
		return
	}
	update := groupapi.LocationUpdate{
		MemberID:       s.memberID,
		Lat:            pos.Lat,
		Lng:            pos.Lng,
		SharingEnabled: sharing,
	}
	if s.reporting {
		s.pending = &update
		return
	}
	s.send(update)
}

func (s *SyncLoop) send(update groupapi.LocationUpdate) {
	s.reporting = true
	groupID := s.groupID

	s.sched.Go(func(ctx context.Context) {
		if err := s.api.UpdateLocation(ctx, groupID, update); err != nil {
			s.logger.Warn("Failed to report position",
				zap.String("group_id", groupID),
				zap.Error(err))
		}
		s.sched.Post(s.reported)
	})
}

func (s *SyncLoop) reported() {
	s.reporting = false
	if s.pending == nil {
		return
	}
	next := *s.pending
	s.pending = nil
	s.send(next)
}

func (s *SyncLoop) arm() {
	s.stopTimer = s.sched.Every(s.interval, s.fetch)
}

func (s *SyncLoop) disarm() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
}

func (s *SyncLoop) fetch() {
	if !s.running {
		return
	}
	s.seq++
	seq := s.seq
	groupID := s.groupID

	s.sched.Go(func(ctx context.Context) {
		locations, err := s.api.GetLocations(ctx, groupID)
		s.sched.Post(func() {
			s.complete(seq, locations, err)
		})
	})
}

func (s *SyncLoop) complete(seq uint64, locations []group.MemberLocation, err error) {
	if !s.running || s.terminal != nil {
		return
	}
	if seq <= s.appliedSeq {
		s.logger.Debug("Discarding stale fetch",
			zap.Uint64("seq", seq),
			zap.Uint64("applied_seq", s.appliedSeq))
		return
	}

	if err != nil {
		if shared.IsGroupGone(err) {
			s.terminal = err
			s.Stop()
			s.logger.Warn("Group is gone", zap.String("group_id", s.groupID), zap.Error(err))
			s.GroupGone.Emit(err)
			return
		}
		s.logger.Warn("Snapshot fetch failed, keeping last known good",
			zap.Uint64("seq", seq),
			zap.Error(err))
		return
	}

	s.appliedSeq = seq
	s.snapshot = group.NewSnapshot(locations, s.sched.Now())
	s.SnapshotChanged.Emit(s.snapshot)
}
