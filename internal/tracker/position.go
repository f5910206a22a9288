package tracker

import (
	"context"

	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/geolocation"
	"github.com/danghamo/groupwatch/pkg/logger"
)

// AcquisitionState is the position acquisition state
type AcquisitionState string

const (
	StatePending AcquisitionState = "pending"
	StateGranted AcquisitionState = "granted"
	StateDenied  AcquisitionState = "denied"
)

// PositionStatus is the acquisition state plus, when denied, why
type PositionStatus struct {
	State   AcquisitionState   `json:"state"`
	Reason  geolocation.Reason `json:"reason,omitempty"`
	Message string             `json:"message,omitempty"`
}

// PositionAcquirer keeps a continuous watch on the geolocation source and
// owns the self position
type PositionAcquirer struct {
	sched  Scheduler
	source geolocation.Source
	opts   geolocation.Options
	logger *logger.Logger

	status   PositionStatus
	position *shared.Position
	sub      geolocation.Subscription
	stopCtx  context.CancelFunc
	// generation discards callbacks from a subscription that was replaced
	generation int

	PositionChanged signal[shared.Position]
	StatusChanged   signal[PositionStatus]
}

// NewPositionAcquirer creates an acquirer. A nil source is reported as
// unsupported on Start.
func NewPositionAcquirer(sched Scheduler, source geolocation.Source, opts geolocation.Options, log *logger.Logger) *PositionAcquirer {
	return &PositionAcquirer{
		sched:  sched,
		source: source,
		opts:   opts,
		logger: log.WithComponent("position"),
		status: PositionStatus{State: StatePending},
	}
}

// Status returns the acquisition state
func (p *PositionAcquirer) Status() PositionStatus {
	return p.status
}

// Position returns the last accepted fix
func (p *PositionAcquirer) Position() (shared.Position, bool) {
	if p.position == nil {
		return shared.Position{}, false
	}
	return *p.position, true
}

// Start opens the watch
func (p *PositionAcquirer) Start() {
	if p.sub != nil {
		return
	}
	if p.source == nil {
		p.deny(geolocation.ErrUnsupported())
		return
	}

	p.generation++
	gen := p.generation

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := p.source.Watch(ctx, p.opts,
		func(fix geolocation.Fix) {
			p.sched.Post(func() {
				if gen == p.generation {
					p.accept(fix)
				}
			})
		},
		func(err error) {
			p.sched.Post(func() {
				if gen == p.generation {
					p.deny(err)
				}
			})
		},
	)
	if err != nil {
		cancel()
		p.deny(err)
		return
	}

	p.sub = sub
	p.stopCtx = cancel
	p.logger.Debug("Position watch started",
		zap.Bool("high_accuracy", p.opts.HighAccuracy),
		zap.Duration("timeout", p.opts.Timeout))
}

// Retry re-arms the watch after a denial
func (p *PositionAcquirer) Retry() {
	p.Cancel()
	p.setStatus(PositionStatus{State: StatePending})
	p.Start()
}

// Cancel closes the watch. Safe to call at any time, any number of times.
func (p *PositionAcquirer) Cancel() {
	p.generation++
	if p.sub != nil {
		p.sub.Cancel()
		p.sub = nil
	}
	if p.stopCtx != nil {
		p.stopCtx()
		p.stopCtx = nil
	}
}

func (p *PositionAcquirer) accept(fix geolocation.Fix) {
	if !fix.Position.Valid() {
		p.logger.Warn("Dropping invalid fix", zap.Stringer("position", fix.Position))
		return
	}

	pos := fix.Position
	p.position = &pos
	if p.status.State != StateGranted {
		p.setStatus(PositionStatus{State: StateGranted})
	}
	p.PositionChanged.Emit(pos)
}

func (p *PositionAcquirer) deny(err error) {
	p.Cancel()

	if shared.CodeOf(err) == 0 {
		err = shared.WrapDomainError(err, shared.ErrCodePositionUnavailable, "position source failed")
	}
	status := PositionStatus{
		State:   StateDenied,
		Reason:  geolocation.ReasonOf(err),
		Message: shared.UserMessage(err),
	}

	p.logger.Warn("Position acquisition denied",
		zap.String("reason", string(status.Reason)),
		zap.Error(err))
	p.setStatus(status)
}

func (p *PositionAcquirer) setStatus(status PositionStatus) {
	p.status = status
	p.StatusChanged.Emit(status)
}
