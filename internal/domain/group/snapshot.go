package group

import "time"

// Snapshot is the full set of member locations as of the last successful fetch.
// It is never mutated after construction; a new sync produces a new Snapshot.
type Snapshot struct {
	members   []MemberLocation
	fetchedAt time.Time
}

// NewSnapshot copies members into an immutable snapshot
func NewSnapshot(members []MemberLocation, fetchedAt time.Time) *Snapshot {
	cp := make([]MemberLocation, len(members))
	copy(cp, members)
	return &Snapshot{members: cp, fetchedAt: fetchedAt}
}

// EmptySnapshot is the state at session start
func EmptySnapshot() *Snapshot {
	return &Snapshot{}
}

// Len returns the number of members
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}

// FetchedAt returns when the snapshot was received
func (s *Snapshot) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

// Members returns a copy of all members
func (s *Snapshot) Members() []MemberLocation {
	if s == nil {
		return nil
	}
	cp := make([]MemberLocation, len(s.members))
	copy(cp, s.members)
	return cp
}

// Visible returns the members currently sharing their location
func (s *Snapshot) Visible() []MemberLocation {
	if s == nil {
		return nil
	}
	visible := make([]MemberLocation, 0, len(s.members))
	for _, m := range s.members {
		if m.SharingEnabled {
			visible = append(visible, m)
		}
	}
	return visible
}

// Find looks up a member by id
func (s *Snapshot) Find(memberID string) (MemberLocation, bool) {
	if s == nil {
		return MemberLocation{}, false
	}
	for _, m := range s.members {
		if m.MemberID == memberID {
			return m, true
		}
	}
	return MemberLocation{}, false
}
