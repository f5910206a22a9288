package geolocation

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danghamo/groupwatch/internal/domain/shared"
)

// Track is a recorded route replayed as live fixes
type Track struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Loop     bool          `yaml:"loop"`
	Points   []TrackPoint  `yaml:"points" validate:"required,min=1,dive"`
}

// TrackPoint is one step of a track. A non-empty Error replays an
// acquisition failure instead of a fix.
type TrackPoint struct {
	Lat   float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lng   float64 `yaml:"lng" validate:"gte=-180,lte=180"`
	Error string  `yaml:"error" validate:"omitempty,oneof=permission-denied position-unavailable timeout unsupported"`
}

// LoadTrack reads and validates a YAML track file
func LoadTrack(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	return ParseTrack(data)
}

// ParseTrack decodes and validates a YAML track
func ParseTrack(data []byte) (*Track, error) {
	var track Track
	if err := yaml.Unmarshal(data, &track); err != nil {
		return nil, fmt.Errorf("parse track: %w", err)
	}
	if err := validator.New().Struct(&track); err != nil {
		return nil, fmt.Errorf("validate track: %w", err)
	}
	return &track, nil
}

// ReplaySource plays a Track as a continuous position stream
type ReplaySource struct {
	track *Track
	now   func() time.Time
}

// NewReplay creates a replay source
func NewReplay(track *Track) *ReplaySource {
	return &ReplaySource{track: track, now: time.Now}
}

// Watch starts emitting the track; the first point is emitted immediately
func (s *ReplaySource) Watch(ctx context.Context, opts Options, onFix FixHandler, onError ErrorHandler) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &replaySubscription{cancel: cancel, done: make(chan struct{})}
	dog := newWatchdog(opts.Timeout, func() {
		if ctx.Err() == nil {
			onError(ErrTimeout())
		}
	})

	go func() {
		defer close(sub.done)
		defer dog.stop()

		ticker := time.NewTicker(s.track.Interval)
		defer ticker.Stop()

		i := 0
		for {
			point := s.track.Points[i]
			if point.Error != "" {
				onError(ErrorForReason(point.Error))
			} else {
				dog.reset()
				onFix(Fix{Position: shared.NewPosition(point.Lat, point.Lng), Timestamp: s.now()})
			}

			i++
			if i == len(s.track.Points) {
				if !s.track.Loop {
					// hold the last position
					dog.stop()
					<-ctx.Done()
					return
				}
				i = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return sub, nil
}

type replaySubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the replay and waits for the emitter to exit
func (s *replaySubscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
