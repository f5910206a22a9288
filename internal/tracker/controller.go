package tracker

import (
	"context"
	"time"

	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/pkg/config"
)

// Runner runs a function on the loop and waits for it
type Runner interface {
	Do(ctx context.Context, fn func()) error
	// Done is closed once the loop stops
	Done() <-chan struct{}
}

// Controller exposes a session to other goroutines, such as HTTP handlers
// and the CLI. Each call is marshalled onto the loop.
type Controller struct {
	runner  Runner
	session *Session
}

// NewController creates a controller for session running on runner
func NewController(runner Runner, session *Session) *Controller {
	return &Controller{runner: runner, session: session}
}

// View returns the latest view
func (c *Controller) View() *View {
	return c.session.View()
}

// SetSharing toggles position forwarding
func (c *Controller) SetSharing(ctx context.Context, on bool) error {
	return c.runner.Do(ctx, func() { c.session.SetSharing(on) })
}

// SetRangeRadius accepts one of the supported radii in meters
func (c *Controller) SetRangeRadius(ctx context.Context, meters int) error {
	if !allowed(config.RangeRadii, meters) {
		return shared.NewDomainErrorf(shared.ErrCodeInvalidInput, "range radius must be one of %v", config.RangeRadii)
	}
	return c.runner.Do(ctx, func() { c.session.SetRangeRadius(meters) })
}

// SetRefreshInterval accepts one of the supported intervals in seconds
func (c *Controller) SetRefreshInterval(ctx context.Context, seconds int) error {
	if !allowed(config.RefreshIntervals, seconds) {
		return shared.NewDomainErrorf(shared.ErrCodeInvalidInput, "refresh interval must be one of %v", config.RefreshIntervals)
	}
	return c.runner.Do(ctx, func() {
		c.session.SetRefreshInterval(time.Duration(seconds) * time.Second)
	})
}

// DismissAlert removes the alert with key
func (c *Controller) DismissAlert(ctx context.Context, key string) error {
	var ok bool
	if err := c.runner.Do(ctx, func() { ok = c.session.DismissAlert(key) }); err != nil {
		return err
	}
	if !ok {
		return shared.NewDomainErrorf(shared.ErrCodeInvalidInput, "no alert with key %q", key)
	}
	return nil
}

// RetryPosition re-arms a denied position watch
func (c *Controller) RetryPosition(ctx context.Context) error {
	return c.runner.Do(ctx, c.session.RetryPosition)
}

// Delete deletes the group and waits for the outcome
func (c *Controller) Delete(ctx context.Context) error {
	result := make(chan error, 1)
	err := c.runner.Do(ctx, func() {
		c.session.Delete(func(err error) { result <- err })
	})
	if err != nil {
		return err
	}

	// completions posted after the loop stops are dropped
	select {
	case err := <-result:
		return err
	case <-c.runner.Done():
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Teardown ends the session without navigating
func (c *Controller) Teardown(ctx context.Context) error {
	return c.runner.Do(ctx, c.session.Teardown)
}

func allowed(values []int, v int) bool {
	for _, a := range values {
		if a == v {
			return true
		}
	}
	return false
}
