package tracker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/geolocation"
	"github.com/danghamo/groupwatch/pkg/logger"
)

func newAcquirer(source geolocation.Source) (*fakeScheduler, *PositionAcquirer) {
	sched := newFakeScheduler()
	return sched, NewPositionAcquirer(sched, source, geolocation.DefaultOptions(), logger.NewNop())
}

func TestPositionAcquirer_NoSource(t *testing.T) {
	_, p := newAcquirer(nil)
	p.Start()

	status := p.Status()
	assert.Equal(t, StateDenied, status.State)
	assert.Equal(t, geolocation.ReasonUnsupported, status.Reason)
	assert.NotEmpty(t, status.Message)
}

func TestPositionAcquirer_FirstFixGrants(t *testing.T) {
	src := &fakeSource{}
	sched, p := newAcquirer(src)

	var fixes []shared.Position
	p.PositionChanged.Subscribe(func(pos shared.Position) { fixes = append(fixes, pos) })

	p.Start()
	require.Len(t, src.opts, 1)
	assert.True(t, src.opts[0].HighAccuracy)
	assert.Equal(t, StatePending, p.Status().State)

	src.emit(1, 2)
	assert.Empty(t, fixes, "fixes are handled on the loop")
	sched.Flush()

	assert.Equal(t, StateGranted, p.Status().State)
	require.Len(t, fixes, 1)
	pos, ok := p.Position()
	require.True(t, ok)
	assert.Equal(t, sharedPos(1, 2), pos)
}

func TestPositionAcquirer_DropsInvalidFix(t *testing.T) {
	src := &fakeSource{}
	sched, p := newAcquirer(src)
	p.Start()

	src.emit(100, 0)
	sched.Flush()

	assert.Equal(t, StatePending, p.Status().State)
	_, ok := p.Position()
	assert.False(t, ok)
}

func TestPositionAcquirer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason geolocation.Reason
	}{
		{"permission", geolocation.ErrPermissionDenied(), geolocation.ReasonPermissionDenied},
		{"timeout", geolocation.ErrTimeout(), geolocation.ReasonTimeout},
		{"unavailable", geolocation.ErrUnavailable("no satellites"), geolocation.ReasonPositionUnavailable},
		{"plain error", errors.New("serial port closed"), geolocation.ReasonPositionUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{}
			sched, p := newAcquirer(src)
			p.Start()

			src.fail(tt.err)
			sched.Flush()

			status := p.Status()
			assert.Equal(t, StateDenied, status.State)
			assert.Equal(t, tt.reason, status.Reason)
			assert.NotEmpty(t, status.Message)
			assert.Equal(t, 1, src.subs[0].cancels, "acquisition errors end the watch")
		})
	}
}

func TestPositionAcquirer_WatchFails(t *testing.T) {
	src := &fakeSource{watchErr: geolocation.ErrPermissionDenied()}
	_, p := newAcquirer(src)
	p.Start()

	assert.Equal(t, StateDenied, p.Status().State)
	assert.Equal(t, geolocation.ReasonPermissionDenied, p.Status().Reason)
}

func TestPositionAcquirer_Retry(t *testing.T) {
	src := &fakeSource{}
	sched, p := newAcquirer(src)
	p.Start()
	src.fail(geolocation.ErrTimeout())
	sched.Flush()
	stale := src.onFix

	var states []AcquisitionState
	p.StatusChanged.Subscribe(func(s PositionStatus) { states = append(states, s.State) })

	p.Retry()
	require.Len(t, src.subs, 2)
	assert.Equal(t, []AcquisitionState{StatePending}, states)

	// a late fix from the first watch is ignored
	stale(geolocation.Fix{Position: sharedPos(1, 1)})
	sched.Flush()
	assert.Equal(t, StatePending, p.Status().State)

	src.emit(3, 4)
	sched.Flush()
	assert.Equal(t, StateGranted, p.Status().State)
}

func TestPositionAcquirer_CancelIdempotent(t *testing.T) {
	src := &fakeSource{}
	sched, p := newAcquirer(src)
	p.Start()

	p.Cancel()
	p.Cancel()
	assert.Equal(t, 1, src.subs[0].cancels)

	src.emit(1, 1)
	sched.Flush()
	_, ok := p.Position()
	assert.False(t, ok, "callbacks after cancel are dropped")
}
