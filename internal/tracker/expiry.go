package tracker

import (
	"fmt"
	"time"
)

const (
	clockTick        = time.Second
	expiringSoonTime = 5 * time.Minute
)

// FormatRelative renders how long ago then was, as seen at now
func FormatRelative(then, now time.Time) string {
	secs := int(now.Sub(then) / time.Second)
	switch {
	case secs < 5:
		return "Just now"
	case secs < 60:
		return fmt.Sprintf("%d seconds ago", secs)
	case secs < 120:
		return "1 minute ago"
	case secs < 3600:
		return fmt.Sprintf("%d minutes ago", secs/60)
	case secs < 7200:
		return "1 hour ago"
	default:
		return fmt.Sprintf("%d hours ago", secs/3600)
	}
}

// FormatCountdown renders the time left until a deadline
func FormatCountdown(remaining time.Duration) string {
	if remaining <= 0 {
		return "Expired"
	}
	total := int(remaining / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// ExpiringSoon reports whether a live deadline is less than five minutes away
func ExpiringSoon(remaining time.Duration) bool {
	return remaining > 0 && remaining < expiringSoonTime
}

// ExpiryTimer is the one-second clock. It drives relative and countdown
// formatting and fires Expired once when the deadline is reached.
type ExpiryTimer struct {
	sched     Scheduler
	expiresAt *time.Time
	now       time.Time
	stop      Cancel
	expired   bool

	Ticked  signal[time.Time]
	Expired signal[time.Time]
}

// NewExpiryTimer creates a timer for expiresAt; nil never expires
func NewExpiryTimer(sched Scheduler, expiresAt *time.Time) *ExpiryTimer {
	return &ExpiryTimer{sched: sched, expiresAt: expiresAt, now: sched.Now()}
}

// Start checks the deadline immediately and then every second
func (e *ExpiryTimer) Start() {
	if e.stop != nil {
		return
	}
	e.stop = e.sched.Every(clockTick, e.tick)
	e.tick()
}

// Stop cancels the clock
func (e *ExpiryTimer) Stop() {
	if e.stop != nil {
		e.stop()
		e.stop = nil
	}
}

// SetDeadline replaces the deadline, for metadata hydrated after start
func (e *ExpiryTimer) SetDeadline(expiresAt *time.Time) {
	e.expiresAt = expiresAt
	if e.stop != nil {
		e.tick()
	}
}

// Deadline returns the expiry time; nil never expires
func (e *ExpiryTimer) Deadline() *time.Time {
	return e.expiresAt
}

// Now is the time of the last tick
func (e *ExpiryTimer) Now() time.Time {
	return e.now
}

// Remaining returns the time left; ok is false when there is no deadline
func (e *ExpiryTimer) Remaining() (time.Duration, bool) {
	if e.expiresAt == nil {
		return 0, false
	}
	return e.expiresAt.Sub(e.now), true
}

// Countdown renders the remaining time, or "" without a deadline
func (e *ExpiryTimer) Countdown() string {
	remaining, ok := e.Remaining()
	if !ok {
		return ""
	}
	return FormatCountdown(remaining)
}

// Relative renders t relative to the last tick
func (e *ExpiryTimer) Relative(t time.Time) string {
	return FormatRelative(t, e.now)
}

func (e *ExpiryTimer) tick() {
	e.now = e.sched.Now()
	e.Ticked.Emit(e.now)

	if e.expired || e.expiresAt == nil || e.now.Before(*e.expiresAt) {
		return
	}
	e.expired = true
	e.Expired.Emit(e.now)
}
