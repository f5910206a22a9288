package tracker

import (
	"math"
	"time"

	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
)

// MemberView is one visible member as the map widget draws it
type MemberView struct {
	group.MemberLocation
	Self bool `json:"self"`
	// DistanceMeters is nil until the self position is known
	DistanceMeters *int   `json:"distance,omitempty"`
	OutOfRange     bool   `json:"outOfRange"`
	LastSeen       string `json:"lastSeen"`
}

// View is an immutable rendering of a session
type View struct {
	GroupID         string              `json:"groupId"`
	GroupName       string              `json:"groupName,omitempty"`
	MemberID        string              `json:"memberId"`
	DisplayName     string              `json:"displayName"`
	Position        PositionStatus      `json:"position"`
	Self            *shared.Position    `json:"self,omitempty"`
	Sharing         bool                `json:"sharing"`
	RangeRadius     int                 `json:"rangeRadius"`
	RefreshInterval int                 `json:"refreshInterval"`
	Members         []MemberView        `json:"members"`
	SyncedAt        *time.Time          `json:"syncedAt,omitempty"`
	Alerts          []group.AlertRecord `json:"alerts"`
	ExpiresAt       *time.Time          `json:"expiresAt,omitempty"`
	Countdown       string              `json:"countdown,omitempty"`
	ExpiringSoon    bool                `json:"expiringSoon"`
	Error           string              `json:"error,omitempty"`
	Ended           bool                `json:"ended"`
}

func (s *Session) buildView() *View {
	v := &View{
		GroupID:         s.cfg.GroupID,
		GroupName:       s.cfg.GroupName,
		MemberID:        s.cfg.Identity.MemberID,
		DisplayName:     s.cfg.Identity.DisplayName,
		Position:        s.position.Status(),
		Sharing:         s.lifecycle.Sharing(),
		RangeRadius:     s.geofence.Radius(),
		RefreshInterval: int(s.sync.Interval() / time.Second),
		Members:         []MemberView{},
		Alerts:          s.alerts.Queue(),
		ExpiresAt:       s.expiry.Deadline(),
		Countdown:       s.expiry.Countdown(),
		Error:           s.errMessage,
		Ended:           s.torndown,
	}
	if remaining, ok := s.expiry.Remaining(); ok {
		v.ExpiringSoon = ExpiringSoon(remaining)
	}
	if s.torndown {
		v.Alerts = []group.AlertRecord{}
		return v
	}

	if pos, ok := s.position.Position(); ok {
		v.Self = &pos
	}

	snap := s.sync.Snapshot()
	if snap.Len() > 0 {
		fetched := snap.FetchedAt()
		v.SyncedAt = &fetched
	}
	for _, m := range snap.Visible() {
		mv := MemberView{
			MemberLocation: m,
			Self:           m.MemberID == s.cfg.Identity.MemberID,
			LastSeen:       s.expiry.Relative(m.UpdatedAt),
		}
		if d, ok := s.geofence.Distance(m); ok && !mv.Self {
			rounded := int(math.Round(d))
			mv.DistanceMeters = &rounded
			mv.OutOfRange = d > float64(v.RangeRadius)
		}
		v.Members = append(v.Members, mv)
	}
	return v
}
