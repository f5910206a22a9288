package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	// same point should be 0
	d := Haversine(-6.2088, 106.8456, -6.2088, 106.8456)
	assert.Equal(t, 0.0, d)

	// 0.001 degree of longitude at the equator
	d = Haversine(0, 0, 0, 0.001)
	assert.InDelta(t, 111.2, d, 1.0)

	// roughly 133m between these two points
	d = Haversine(-6.2088, 106.8456, -6.2100, 106.8456)
	assert.InDelta(t, 133.4, d, 1.0)
}

func TestHaversine_Symmetric(t *testing.T) {
	points := []Position{
		{Lat: 0, Lng: 0},
		{Lat: 51.5007, Lng: -0.1246},
		{Lat: -33.8568, Lng: 151.2153},
		{Lat: 40.6892, Lng: -74.0445},
		{Lat: 89.9, Lng: 179.9},
	}

	for _, a := range points {
		for _, b := range points {
			ab := a.DistanceTo(b)
			ba := b.DistanceTo(a)
			assert.InDelta(t, ab, ba, 1e-6, "distance %v -> %v", a, b)
			if a == b {
				assert.Equal(t, 0.0, ab)
			} else {
				assert.Greater(t, ab, 0.0)
			}
		}
	}
}

func TestPosition_Valid(t *testing.T) {
	assert.True(t, NewPosition(45, 90).Valid())
	assert.False(t, NewPosition(91, 0).Valid())
	assert.False(t, NewPosition(0, -181).Valid())
}

func TestCodeOf(t *testing.T) {
	err := NewDomainError(ErrCodeGroupNotFound, "group not found")
	assert.Equal(t, ErrCodeGroupNotFound, CodeOf(err))
	assert.True(t, IsGroupGone(err))

	wrapped := WrapDomainError(errors.New("dial tcp: refused"), ErrCodeNetworkFailure, "fetch locations")
	assert.True(t, HasCode(wrapped, ErrCodeNetworkFailure))
	assert.False(t, IsGroupGone(wrapped))

	assert.Equal(t, 0, CodeOf(errors.New("plain")))
	assert.Equal(t, 0, CodeOf(nil))
}

func TestUserMessage(t *testing.T) {
	messages := map[string]bool{}
	for _, code := range []int{
		ErrCodePermissionDenied,
		ErrCodePositionUnavailable,
		ErrCodePositionTimeout,
		ErrCodeGeolocationUnsupported,
	} {
		msg := UserMessage(NewDomainError(code, "x"))
		assert.NotEmpty(t, msg)
		messages[msg] = true
	}
	assert.Len(t, messages, 4, "each acquisition error has its own message")

	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}
