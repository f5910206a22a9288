package group

import (
	"time"

	"github.com/danghamo/groupwatch/internal/domain/shared"
)

// Group is the remote group record returned by create and join
type Group struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	RefreshInterval int        `json:"refreshInterval"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
}

// Meta is the locally cached group metadata. A nil ExpiresAt never expires.
type Meta struct {
	GroupID   string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// MetaFromGroup builds the cached metadata for a group
func MetaFromGroup(g *Group) Meta {
	return Meta{GroupID: g.ID, Name: g.Name, ExpiresAt: g.ExpiresAt}
}

// Expired reports whether the group deadline has been reached at now
func (m Meta) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// MemberLocation is one member's last reported position
type MemberLocation struct {
	MemberID       string    `json:"memberId"`
	DisplayName    string    `json:"displayName"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	UpdatedAt      time.Time `json:"updatedAt"`
	SharingEnabled bool      `json:"sharingEnabled"`
}

// Position returns the member's coordinate
func (m MemberLocation) Position() shared.Position {
	return shared.NewPosition(m.Lat, m.Lng)
}

// Identity is the local member
type Identity struct {
	MemberID    string `json:"memberId"`
	DisplayName string `json:"displayName"`
}
