package tracker

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/geolocation"
	"github.com/danghamo/groupwatch/internal/notify"
	"github.com/danghamo/groupwatch/pkg/logger"
)

const (
	// DefaultExitDelay leaves a terminal message on screen before leaving
	DefaultExitDelay = 2 * time.Second

	expiredMessage = "This group has expired."
)

// Destination is where a session navigates when it ends
type Destination string

const DestinationEntry Destination = "entry"

// Exit reasons passed to the Navigator
const (
	ExitGroupGone = "group-gone"
	ExitExpired   = "expired"
	ExitDeleted   = "deleted"
)

// Navigator leaves the group view
type Navigator interface {
	Navigate(dest Destination, reason string)
}

// ViewSink receives every new view. It is called on the loop and must not
// block.
type ViewSink interface {
	ViewChanged(view *View)
}

// Config describes one watch session
type Config struct {
	GroupID         string
	GroupName       string
	Identity        group.Identity
	RefreshInterval time.Duration
	RangeRadius     int
	AlertCooldown   time.Duration
	AlertQueueSize  int
	ExitDelay       time.Duration
	PositionOptions geolocation.Options
	// ExpiresAt nil never expires
	ExpiresAt *time.Time
	// SharingPaused starts the session with forwarding off
	SharingPaused bool
}

// Deps are the session's collaborators
type Deps struct {
	Scheduler Scheduler
	API       GroupAPI
	Source    geolocation.Source
	Notifier  notify.Notifier
	Navigator Navigator
	Sink      ViewSink
	Logger    *logger.Logger
}

// Session composes the tracker components for one group view. Apart from
// View, every method must run on the scheduler's loop.
type Session struct {
	cfg    Config
	sched  Scheduler
	nav    Navigator
	sink   ViewSink
	logger *logger.Logger

	position  *PositionAcquirer
	sync      *SyncLoop
	alerts    *AlertManager
	geofence  *GeofenceEvaluator
	expiry    *ExpiryTimer
	lifecycle *Lifecycle

	view atomic.Pointer[View]

	errMessage string
	exitTimer  Cancel
	exiting    bool
	navigated  bool
	started    bool
	torndown   bool
}

// NewSession wires the components together
func NewSession(cfg Config, deps Deps) (*Session, error) {
	if cfg.GroupID == "" {
		return nil, shared.ErrInvalidInput("group id is required")
	}
	if cfg.Identity.MemberID == "" {
		return nil, shared.ErrInvalidInput("member id is required")
	}
	if deps.Scheduler == nil || deps.API == nil {
		return nil, shared.ErrInvalidInput("scheduler and group api are required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.ExitDelay <= 0 {
		cfg.ExitDelay = DefaultExitDelay
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithGroupID(cfg.GroupID).WithMemberID(cfg.Identity.MemberID)

	s := &Session{
		cfg:    cfg,
		sched:  deps.Scheduler,
		nav:    deps.Navigator,
		sink:   deps.Sink,
		logger: log.WithComponent("session"),
	}

	s.position = NewPositionAcquirer(s.sched, deps.Source, cfg.PositionOptions, log)
	s.sync = NewSyncLoop(s.sched, deps.API, cfg.Identity.MemberID, log)
	s.alerts = NewAlertManager(s.sched, deps.Notifier, cfg.AlertCooldown, cfg.AlertQueueSize, log)
	s.geofence = NewGeofenceEvaluator(cfg.Identity.MemberID, cfg.RangeRadius, s.alerts)
	s.expiry = NewExpiryTimer(s.sched, cfg.ExpiresAt)
	s.lifecycle = NewLifecycle(s.sched, deps.API, cfg.GroupID, s.position, s.sync, !cfg.SharingPaused, log)
	s.sync.SetInterval(cfg.RefreshInterval)

	s.position.PositionChanged.Subscribe(func(pos shared.Position) {
		s.lifecycle.OnFix(pos)
		s.geofence.OnPosition(pos)
		s.publish()
	})
	s.position.StatusChanged.Subscribe(func(PositionStatus) { s.publish() })
	s.sync.SnapshotChanged.Subscribe(func(snap *group.Snapshot) {
		s.geofence.OnSnapshot(snap)
		s.publish()
	})
	s.sync.GroupGone.Subscribe(func(err error) {
		s.fail(shared.UserMessage(err), ExitGroupGone)
	})
	s.alerts.QueueChanged.Subscribe(func([]group.AlertRecord) { s.publish() })
	s.expiry.Ticked.Subscribe(func(time.Time) { s.publish() })
	s.expiry.Expired.Subscribe(func(time.Time) {
		s.fail(expiredMessage, ExitExpired)
	})
	s.lifecycle.SharingChanged.Subscribe(func(bool) { s.publish() })
	s.lifecycle.Deleted.Subscribe(func(struct{}) {
		s.exiting = true
		s.end(ExitDeleted)
	})

	s.view.Store(s.buildView())
	return s, nil
}

// Start begins position acquisition, polling and the clock
func (s *Session) Start() {
	if s.started || s.torndown {
		return
	}
	s.started = true
	s.logger.Info("Session started",
		zap.Duration("refresh_interval", s.sync.Interval()),
		zap.Int("range_radius", s.geofence.Radius()))

	s.position.Start()
	s.sync.Start(s.cfg.GroupID, s.cfg.RefreshInterval)
	s.expiry.Start()
	s.publish()
}

// Teardown cancels the position watch, the poll timer, the clock and a
// pending exit. Only the first call has an effect.
func (s *Session) Teardown() {
	if s.torndown {
		return
	}
	s.torndown = true

	s.position.Cancel()
	s.sync.Stop()
	s.expiry.Stop()
	if s.exitTimer != nil {
		s.exitTimer()
		s.exitTimer = nil
	}

	s.logger.Info("Session torn down")
	s.publish()
}

// View returns the latest immutable view. Safe from any goroutine.
func (s *Session) View() *View {
	return s.view.Load()
}

// SetSharing toggles position forwarding
func (s *Session) SetSharing(on bool) {
	if s.torndown {
		return
	}
	s.lifecycle.SetSharing(on)
}

// SetRangeRadius changes the geofence radius in meters
func (s *Session) SetRangeRadius(meters int) {
	if s.torndown {
		return
	}
	s.geofence.SetRadius(meters)
	s.publish()
}

// SetRefreshInterval changes the poll cadence
func (s *Session) SetRefreshInterval(interval time.Duration) {
	if s.torndown {
		return
	}
	s.sync.SetInterval(interval)
	s.publish()
}

// DismissAlert removes the alert with key from the recent alerts
func (s *Session) DismissAlert(key string) bool {
	if s.torndown {
		return false
	}
	return s.alerts.DismissKey(key)
}

// RetryPosition re-arms a denied position watch
func (s *Session) RetryPosition() {
	if s.torndown || s.position.Status().State != StateDenied {
		return
	}
	s.position.Retry()
}

// Delete deletes the group. On success the session ends and navigates to the
// entry page; on failure done gets a DELETE_FAILED error and the view stays.
func (s *Session) Delete(done func(error)) {
	if s.torndown {
		done(shared.NewDomainError(shared.ErrCodeDeleteFailed, "session has ended"))
		return
	}
	s.lifecycle.Delete(func(err error) {
		if err != nil {
			s.publish()
		}
		done(err)
	})
}

// fail shows message and leaves after the exit delay, once
func (s *Session) fail(message, reason string) {
	if s.exiting || s.torndown {
		return
	}
	s.exiting = true
	s.errMessage = message
	s.logger.Warn("Session ending", zap.String("reason", reason), zap.String("message", message))
	s.publish()

	s.exitTimer = s.sched.After(s.cfg.ExitDelay, func() {
		s.exitTimer = nil
		s.end(reason)
	})
}

func (s *Session) end(reason string) {
	if s.navigated {
		return
	}
	s.navigated = true
	s.Teardown()
	if s.nav != nil {
		s.nav.Navigate(DestinationEntry, reason)
	}
}

func (s *Session) publish() {
	v := s.buildView()
	s.view.Store(v)
	if s.sink != nil {
		s.sink.ViewChanged(v)
	}
}
