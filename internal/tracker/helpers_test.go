package tracker

import (
	"context"
	"sort"
	"time"

	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/geolocation"
	"github.com/danghamo/groupwatch/internal/groupapi"
	"github.com/danghamo/groupwatch/internal/notify"
)

var epoch = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type fakeTimer struct {
	at        time.Time
	period    time.Duration
	fn        func()
	cancelled bool
	fired     bool
	seq       int
}

func (t *fakeTimer) active() bool {
	return !t.cancelled && !t.fired
}

// fakeScheduler is a manual clock. Posted work and off-loop jobs only run
// when the test says so.
type fakeScheduler struct {
	now     time.Time
	timers  []*fakeTimer
	posted  []func()
	jobs    []func(ctx context.Context)
	cancels int
	seq     int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: epoch}
}

func (f *fakeScheduler) Now() time.Time { return f.now }

func (f *fakeScheduler) Post(fn func()) { f.posted = append(f.posted, fn) }

func (f *fakeScheduler) Go(fn func(ctx context.Context)) { f.jobs = append(f.jobs, fn) }

func (f *fakeScheduler) Every(d time.Duration, fn func()) Cancel {
	return f.add(d, d, fn)
}

func (f *fakeScheduler) After(d time.Duration, fn func()) Cancel {
	return f.add(d, 0, fn)
}

func (f *fakeScheduler) add(d, period time.Duration, fn func()) Cancel {
	f.seq++
	t := &fakeTimer{at: f.now.Add(d), period: period, fn: fn, seq: f.seq}
	f.timers = append(f.timers, t)
	return func() {
		if t.active() {
			t.cancelled = true
			f.cancels++
		}
	}
}

// Flush runs posted work, including work posted while flushing
func (f *fakeScheduler) Flush() {
	for len(f.posted) > 0 {
		fn := f.posted[0]
		f.posted = f.posted[1:]
		fn()
	}
}

// RunJobs runs every off-loop job in submission order, then flushes
func (f *fakeScheduler) RunJobs() {
	for len(f.jobs) > 0 {
		f.RunJob(0)
	}
}

// RunJob runs job i alone, then flushes
func (f *fakeScheduler) RunJob(i int) {
	job := f.jobs[i]
	f.jobs = append(f.jobs[:i:i], f.jobs[i+1:]...)
	job(context.Background())
	f.Flush()
}

// Advance moves the clock, firing due timers in time order
func (f *fakeScheduler) Advance(d time.Duration) {
	target := f.now.Add(d)
	for {
		var due []*fakeTimer
		for _, t := range f.timers {
			if t.active() && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].seq < due[j].seq
			}
			return due[i].at.Before(due[j].at)
		})

		t := due[0]
		f.now = t.at
		if t.period > 0 {
			t.at = t.at.Add(t.period)
		} else {
			t.fired = true
		}
		t.fn()
		f.Flush()
	}
	f.now = target
}

func (f *fakeScheduler) activeTimers() int {
	n := 0
	for _, t := range f.timers {
		if t.active() {
			n++
		}
	}
	return n
}

type fakeAPI struct {
	locations []group.MemberLocation
	getErr    error
	gets      int
	updates   []groupapi.LocationUpdate
	updateErr error
	deleteErr error
	deletes   int
	// deleteStarted, when set, makes DeleteGroup signal it and block
	// until its context ends
	deleteStarted chan struct{}
}

func (a *fakeAPI) GetLocations(_ context.Context, _ string) ([]group.MemberLocation, error) {
	a.gets++
	if a.getErr != nil {
		return nil, a.getErr
	}
	return a.locations, nil
}

func (a *fakeAPI) UpdateLocation(_ context.Context, _ string, update groupapi.LocationUpdate) error {
	a.updates = append(a.updates, update)
	return a.updateErr
}

func (a *fakeAPI) DeleteGroup(ctx context.Context, _ string) error {
	if a.deleteStarted != nil {
		close(a.deleteStarted)
		<-ctx.Done()
		return ctx.Err()
	}
	a.deletes++
	return a.deleteErr
}

type fakeSubscription struct {
	cancels int
}

func (s *fakeSubscription) Cancel() { s.cancels++ }

type fakeSource struct {
	watchErr error
	opts     []geolocation.Options
	subs     []*fakeSubscription
	onFix    geolocation.FixHandler
	onError  geolocation.ErrorHandler
}

func (s *fakeSource) Watch(_ context.Context, opts geolocation.Options, onFix geolocation.FixHandler, onError geolocation.ErrorHandler) (geolocation.Subscription, error) {
	s.opts = append(s.opts, opts)
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	s.onFix, s.onError = onFix, onError
	sub := &fakeSubscription{}
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *fakeSource) emit(lat, lng float64) {
	s.onFix(geolocation.Fix{Position: sharedPos(lat, lng), Timestamp: epoch})
}

func (s *fakeSource) fail(err error) {
	s.onError(err)
}

type fakeNotifier struct {
	sent []notify.Notification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, msg notify.Notification) error {
	n.sent = append(n.sent, msg)
	return n.err
}

type navigation struct {
	dest   Destination
	reason string
	at     time.Time
}

type fakeNavigator struct {
	sched *fakeScheduler
	calls []navigation
}

func (n *fakeNavigator) Navigate(dest Destination, reason string) {
	call := navigation{dest: dest, reason: reason}
	if n.sched != nil {
		call.at = n.sched.now
	}
	n.calls = append(n.calls, call)
}

type fakeSink struct {
	views []*View
}

func (s *fakeSink) ViewChanged(v *View) { s.views = append(s.views, v) }

func member(id, name string, lat, lng float64, sharing bool) group.MemberLocation {
	return group.MemberLocation{
		MemberID:       id,
		DisplayName:    name,
		Lat:            lat,
		Lng:            lng,
		UpdatedAt:      epoch,
		SharingEnabled: sharing,
	}
}

func sharedPos(lat, lng float64) shared.Position {
	return shared.NewPosition(lat, lng)
}
