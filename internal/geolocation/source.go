// Package geolocation defines the continuous position source contract and
// the sources groupwatch ships with.
package geolocation

import (
	"context"
	"time"

	"github.com/danghamo/groupwatch/internal/domain/shared"
)

// Fix is one position reading
type Fix struct {
	Position  shared.Position `json:"position"`
	Accuracy  float64         `json:"accuracy,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Options are requested from a source when watching
type Options struct {
	HighAccuracy bool
	// Timeout bounds the wait for each fix
	Timeout time.Duration
	// MaximumAge is the oldest cached reading a source may hand out. Zero
	// means every fix must be fresh.
	MaximumAge time.Duration
}

// DefaultOptions asks for fresh high accuracy fixes within 10s
func DefaultOptions() Options {
	return Options{HighAccuracy: true, Timeout: 10 * time.Second, MaximumAge: 0}
}

// FixHandler receives accepted fixes
type FixHandler func(Fix)

// ErrorHandler receives acquisition errors
type ErrorHandler func(error)

// Subscription is a live watch. Cancel is safe to call more than once.
type Subscription interface {
	Cancel()
}

// Source produces a continuous stream of fixes. Handlers may be invoked from
// any goroutine.
type Source interface {
	Watch(ctx context.Context, opts Options, onFix FixHandler, onError ErrorHandler) (Subscription, error)
}

// Reason identifies why acquisition was denied
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonPermissionDenied    Reason = "permission-denied"
	ReasonPositionUnavailable Reason = "position-unavailable"
	ReasonTimeout             Reason = "timeout"
	ReasonUnsupported         Reason = "unsupported"
)

// ReasonOf maps an acquisition error to its denial reason
func ReasonOf(err error) Reason {
	switch shared.CodeOf(err) {
	case shared.ErrCodePermissionDenied:
		return ReasonPermissionDenied
	case shared.ErrCodePositionTimeout:
		return ReasonTimeout
	case shared.ErrCodeGeolocationUnsupported:
		return ReasonUnsupported
	default:
		return ReasonPositionUnavailable
	}
}

// ErrorForReason builds the domain error for a reason string. Unknown
// reasons are treated as unavailable.
func ErrorForReason(reason string) error {
	switch Reason(reason) {
	case ReasonPermissionDenied:
		return ErrPermissionDenied()
	case ReasonTimeout:
		return ErrTimeout()
	case ReasonUnsupported:
		return ErrUnsupported()
	default:
		return ErrUnavailable(reason)
	}
}

func ErrPermissionDenied() error {
	return shared.NewDomainError(shared.ErrCodePermissionDenied, "geolocation permission denied")
}

func ErrUnavailable(detail string) error {
	if detail == "" {
		detail = "no position available"
	}
	return shared.NewDomainErrorf(shared.ErrCodePositionUnavailable, "position unavailable: %s", detail)
}

func ErrTimeout() error {
	return shared.NewDomainError(shared.ErrCodePositionTimeout, "timed out waiting for a position fix")
}

func ErrUnsupported() error {
	return shared.NewDomainError(shared.ErrCodeGeolocationUnsupported, "no geolocation source configured")
}
