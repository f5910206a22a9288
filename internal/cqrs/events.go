package cqrs

import (
	"encoding/json"
	"time"
)

// ViewUpdatedEvent is published after every change to a session's view.
// View carries the full state; Changes is the merge patch from the previous
// version.
type ViewUpdatedEvent struct {
	GroupID   string                 `json:"group_id"`
	Version   uint64                 `json:"version"`
	View      json.RawMessage        `json:"view"`
	Changes   map[string]interface{} `json:"changes,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id"`
}

// GeofenceAlertEvent is published when a member leaves the tracking range
type GeofenceAlertEvent struct {
	GroupID        string    `json:"group_id"`
	MemberID       string    `json:"member_id"`
	DisplayName    string    `json:"display_name"`
	DistanceMeters int       `json:"distance"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Tag            string    `json:"tag"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
}

// SessionEndedEvent is published when a session navigates away
type SessionEndedEvent struct {
	GroupID     string    `json:"group_id"`
	Destination string    `json:"destination"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
}

