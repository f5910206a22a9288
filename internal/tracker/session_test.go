package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/geolocation"
	"github.com/danghamo/groupwatch/pkg/logger"
)

type sessionHarness struct {
	sched    *fakeScheduler
	api      *fakeAPI
	src      *fakeSource
	notifier *fakeNotifier
	nav      *fakeNavigator
	sink     *fakeSink
	session  *Session
}

func newHarness(t *testing.T, mutate func(*Config)) *sessionHarness {
	t.Helper()
	sched := newFakeScheduler()
	h := &sessionHarness{
		sched:    sched,
		api:      &fakeAPI{},
		src:      &fakeSource{},
		notifier: &fakeNotifier{},
		nav:      &fakeNavigator{sched: sched},
		sink:     &fakeSink{},
	}

	cfg := Config{
		GroupID:         "g1",
		GroupName:       "Hiking",
		Identity:        group.Identity{MemberID: "me", DisplayName: "Me"},
		RefreshInterval: 10 * time.Second,
		RangeRadius:     100,
		PositionOptions: geolocation.DefaultOptions(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	session, err := NewSession(cfg, Deps{
		Scheduler: sched,
		API:       h.api,
		Source:    h.src,
		Notifier:  h.notifier,
		Navigator: h.nav,
		Sink:      h.sink,
		Logger:    logger.NewNop(),
	})
	require.NoError(t, err)
	h.session = session
	return h
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(Config{Identity: group.Identity{MemberID: "me"}}, Deps{Scheduler: newFakeScheduler(), API: &fakeAPI{}})
	assert.True(t, shared.HasCode(err, shared.ErrCodeInvalidInput))

	_, err = NewSession(Config{GroupID: "g1"}, Deps{Scheduler: newFakeScheduler(), API: &fakeAPI{}})
	assert.True(t, shared.HasCode(err, shared.ErrCodeInvalidInput))

	_, err = NewSession(Config{GroupID: "g1", Identity: group.Identity{MemberID: "me"}}, Deps{})
	assert.True(t, shared.HasCode(err, shared.ErrCodeInvalidInput))
}

func TestSession_InitialView(t *testing.T) {
	h := newHarness(t, nil)

	v := h.session.View()
	require.NotNil(t, v)
	assert.Equal(t, "g1", v.GroupID)
	assert.Equal(t, "Hiking", v.GroupName)
	assert.Equal(t, StatePending, v.Position.State)
	assert.True(t, v.Sharing)
	assert.Equal(t, 100, v.RangeRadius)
	assert.Equal(t, 10, v.RefreshInterval)
	assert.Empty(t, v.Members)
	assert.Nil(t, v.SyncedAt)
	assert.False(t, v.Ended)
}

func TestSession_GroupNotFoundNavigatesOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.api.getErr = shared.NewDomainError(shared.ErrCodeGroupNotFound, "group not found")

	h.session.Start()
	h.sched.RunJobs()

	assert.Equal(t, "Group not found or expired. Redirecting...", h.session.View().Error)
	assert.Empty(t, h.nav.calls)

	h.sched.Advance(1999 * time.Millisecond)
	assert.Empty(t, h.nav.calls)

	h.sched.Advance(time.Millisecond)
	require.Len(t, h.nav.calls, 1)
	assert.Equal(t, DestinationEntry, h.nav.calls[0].dest)
	assert.Equal(t, ExitGroupGone, h.nav.calls[0].reason)
	assert.Equal(t, epoch.Add(2*time.Second), h.nav.calls[0].at)

	h.sched.Advance(time.Minute)
	h.sched.RunJobs()
	assert.Len(t, h.nav.calls, 1)
	assert.Equal(t, 1, h.api.gets)
	assert.True(t, h.session.View().Ended)
	assert.Equal(t, 0, h.sched.activeTimers())
}

func TestSession_TeardownCancelsOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.session.Start()
	h.sched.RunJobs()

	h.session.Teardown()
	h.session.Teardown()

	require.Len(t, h.src.subs, 1)
	assert.Equal(t, 1, h.src.subs[0].cancels)
	assert.Equal(t, 2, h.sched.cancels, "poll timer and clock")
	assert.Equal(t, 0, h.sched.activeTimers())

	h.sched.Advance(time.Minute)
	assert.Empty(t, h.sched.jobs)
	assert.Empty(t, h.nav.calls)

	v := h.session.View()
	assert.True(t, v.Ended)
	assert.Empty(t, v.Members)
	assert.Empty(t, v.Alerts)
}

func TestSession_TeardownDuringExitDelay(t *testing.T) {
	h := newHarness(t, nil)
	h.api.getErr = shared.NewDomainError(shared.ErrCodeGroupExpired, "group expired")
	h.session.Start()
	h.sched.RunJobs()

	h.session.Teardown()
	h.sched.Advance(time.Minute)

	assert.Empty(t, h.nav.calls)
	assert.Equal(t, 3, h.sched.cancels, "poll timer, clock and exit timer")
}

func TestSession_ExpiryEndsSession(t *testing.T) {
	deadline := epoch.Add(3 * time.Second)
	h := newHarness(t, func(cfg *Config) { cfg.ExpiresAt = &deadline })

	h.session.Start()
	v := h.session.View()
	assert.Equal(t, "3s", v.Countdown)
	assert.True(t, v.ExpiringSoon)

	h.sched.Advance(3 * time.Second)
	assert.Equal(t, "This group has expired.", h.session.View().Error)
	assert.Empty(t, h.nav.calls)

	h.sched.Advance(2 * time.Second)
	require.Len(t, h.nav.calls, 1)
	assert.Equal(t, ExitExpired, h.nav.calls[0].reason)

	h.sched.Advance(time.Minute)
	assert.Len(t, h.nav.calls, 1)
}

func TestSession_SharingGatesReports(t *testing.T) {
	h := newHarness(t, nil)
	h.session.Start()
	h.sched.RunJobs()

	h.src.emit(1, 2)
	h.sched.Flush()
	h.sched.RunJobs()
	require.Len(t, h.api.updates, 1)
	assert.True(t, h.api.updates[0].SharingEnabled)

	h.session.SetSharing(false)
	h.sched.RunJobs()
	require.Len(t, h.api.updates, 2, "one report carries the new flag")
	assert.False(t, h.api.updates[1].SharingEnabled)
	assert.Equal(t, 1.0, h.api.updates[1].Lat)
	assert.False(t, h.session.View().Sharing)

	h.src.emit(1.1, 2)
	h.sched.Flush()
	h.sched.RunJobs()
	assert.Len(t, h.api.updates, 2)
	assert.Equal(t, StateGranted, h.session.View().Position.State, "the watch keeps running")

	h.session.SetSharing(true)
	h.sched.RunJobs()
	require.Len(t, h.api.updates, 3)
	assert.True(t, h.api.updates[2].SharingEnabled)
	assert.Equal(t, 1.1, h.api.updates[2].Lat)
}

func TestSession_SharingPausedWithoutPosition(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.SharingPaused = true })
	h.session.Start()
	assert.False(t, h.session.View().Sharing)

	h.session.SetSharing(true)
	h.sched.RunJobs()
	assert.Empty(t, h.api.updates, "no position to report yet")
	assert.True(t, h.session.View().Sharing)
}

func TestSession_AlertFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.api.locations = []group.MemberLocation{
		member("me", "Me", 0, 0, true),
		member("ann", "Ann", lat150m, 0, true),
		member("bob", "Bob", lat55m, 0, true),
		member("cat", "Cat", 1, 0, false),
	}

	h.session.Start()
	h.sched.RunJobs()
	assert.Empty(t, h.session.View().Alerts, "no self position yet")

	h.src.emit(0, 0)
	h.sched.Flush()

	v := h.session.View()
	require.Len(t, v.Alerts, 1)
	assert.Equal(t, "ann", v.Alerts[0].MemberID)
	require.NotNil(t, v.SyncedAt)

	require.Len(t, v.Members, 3)
	byID := map[string]MemberView{}
	for _, m := range v.Members {
		byID[m.MemberID] = m
	}
	assert.True(t, byID["me"].Self)
	assert.Nil(t, byID["me"].DistanceMeters)
	require.NotNil(t, byID["ann"].DistanceMeters)
	assert.Equal(t, 150, *byID["ann"].DistanceMeters)
	assert.True(t, byID["ann"].OutOfRange)
	assert.False(t, byID["bob"].OutOfRange)
	assert.Equal(t, "Just now", byID["bob"].LastSeen)
	_, hidden := byID["cat"]
	assert.False(t, hidden)

	h.sched.RunJobs()
	require.Len(t, h.notifier.sent, 1)
	require.Len(t, h.api.updates, 1)
	assert.Equal(t, "geofence-ann", h.notifier.sent[0].Tag)

	// the next poll is inside the cooldown
	h.sched.Advance(10 * time.Second)
	h.sched.RunJobs()
	assert.Len(t, h.session.View().Alerts, 1)

	alerts := h.session.View().Alerts
	assert.False(t, h.session.DismissAlert("bob-"+epoch.Format(time.RFC3339Nano)))
	assert.True(t, h.session.DismissAlert(alerts[0].Key()))
	assert.Empty(t, h.session.View().Alerts)
	last, ok := h.session.alerts.History().LastAlert("ann")
	require.True(t, ok)
	assert.Equal(t, epoch, last)
}

func TestSession_DismissIgnoredAfterTeardown(t *testing.T) {
	h := newHarness(t, nil)
	h.api.locations = []group.MemberLocation{member("ann", "Ann", lat150m, 0, true)}
	h.session.Start()
	h.sched.RunJobs()
	h.src.emit(0, 0)
	h.sched.Flush()

	queue := h.session.alerts.Queue()
	require.Len(t, queue, 1)

	h.session.Teardown()
	assert.False(t, h.session.DismissAlert(queue[0].Key()))
	assert.Len(t, h.session.alerts.Queue(), 1)
}

func TestSession_RadiusAndInterval(t *testing.T) {
	h := newHarness(t, nil)
	h.session.Start()

	h.session.SetRangeRadius(300)
	h.session.SetRefreshInterval(60 * time.Second)

	v := h.session.View()
	assert.Equal(t, 300, v.RangeRadius)
	assert.Equal(t, 60, v.RefreshInterval)
	assert.Equal(t, v, h.sink.views[len(h.sink.views)-1])
}

func TestSession_RetryPosition(t *testing.T) {
	h := newHarness(t, nil)
	h.src.watchErr = geolocation.ErrPermissionDenied()
	h.session.Start()

	v := h.session.View()
	assert.Equal(t, StateDenied, v.Position.State)
	assert.Equal(t, geolocation.ReasonPermissionDenied, v.Position.Reason)

	h.src.watchErr = nil
	h.session.RetryPosition()
	assert.Equal(t, StatePending, h.session.View().Position.State)
	require.Len(t, h.src.subs, 1)

	h.src.emit(0, 0)
	h.sched.Flush()
	assert.Equal(t, StateGranted, h.session.View().Position.State)

	h.session.RetryPosition()
	assert.Len(t, h.src.subs, 1, "retry only applies to a denied watch")
}

func TestSession_DeleteFailureKeepsView(t *testing.T) {
	h := newHarness(t, nil)
	h.api.deleteErr = errors.New("status 500")
	h.session.Start()
	h.sched.RunJobs()

	var got error
	called := false
	h.session.Delete(func(err error) { got, called = err, true })
	h.sched.RunJobs()

	require.True(t, called)
	assert.True(t, shared.HasCode(got, shared.ErrCodeDeleteFailed))
	assert.Empty(t, h.nav.calls)
	assert.False(t, h.session.View().Ended)
	assert.Equal(t, 0, h.src.subs[0].cancels)
}

func TestSession_DeleteNavigates(t *testing.T) {
	h := newHarness(t, nil)
	h.session.Start()
	h.sched.RunJobs()

	var got error
	called := false
	h.session.Delete(func(err error) { got, called = err, true })

	var second error
	h.session.Delete(func(err error) { second = err })
	assert.True(t, shared.HasCode(second, shared.ErrCodeDeleteFailed), "already in progress")

	h.sched.RunJobs()
	require.True(t, called)
	assert.NoError(t, got)
	assert.Equal(t, 1, h.api.deletes)

	require.Len(t, h.nav.calls, 1)
	assert.Equal(t, ExitDeleted, h.nav.calls[0].reason)
	assert.Equal(t, epoch, h.nav.calls[0].at, "no exit delay")
	assert.True(t, h.session.View().Ended)
	assert.Equal(t, 1, h.src.subs[0].cancels)
}
