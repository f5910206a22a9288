package group

import (
	"encoding/json"
	"time"
)

// AlertRecord is a raised geofence alert
type AlertRecord struct {
	MemberID       string    `json:"memberId"`
	DisplayName    string    `json:"displayName"`
	DistanceMeters int       `json:"distance"`
	Timestamp      time.Time `json:"timestamp"`
}

// Key identifies an alert in the recency queue. The cooldown keeps it
// unique per member.
func (a AlertRecord) Key() string {
	return a.MemberID + "-" + a.Timestamp.UTC().Format(time.RFC3339Nano)
}

// MarshalJSON adds the key so clients can dismiss a specific alert
func (a AlertRecord) MarshalJSON() ([]byte, error) {
	type record AlertRecord
	return json.Marshal(struct {
		record
		Key string `json:"key"`
	}{record(a), a.Key()})
}

// AlertHistory maps memberId to the time of that member's last alert.
// Writes return a new history; existing values are never modified.
type AlertHistory struct {
	last map[string]time.Time
}

// NewAlertHistory returns an empty history
func NewAlertHistory() AlertHistory {
	return AlertHistory{}
}

// LastAlert returns the last alert time for a member
func (h AlertHistory) LastAlert(memberID string) (time.Time, bool) {
	t, ok := h.last[memberID]
	return t, ok
}

// With returns a copy of the history with memberID set to at
func (h AlertHistory) With(memberID string, at time.Time) AlertHistory {
	next := make(map[string]time.Time, len(h.last)+1)
	for k, v := range h.last {
		next[k] = v
	}
	next[memberID] = at
	return AlertHistory{last: next}
}

// Len returns the number of members with a recorded alert
func (h AlertHistory) Len() int {
	return len(h.last)
}

// CooledDown reports whether a new alert for memberID may be raised at now.
// The window must be strictly exceeded.
func (h AlertHistory) CooledDown(memberID string, now time.Time, window time.Duration) bool {
	last, ok := h.last[memberID]
	if !ok {
		return true
	}
	return now.Sub(last) > window
}
