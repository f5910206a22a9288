package tracker

import (
	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
)

// DefaultRangeRadius is the geofence radius in meters
const DefaultRangeRadius = 100

// GeofenceEvaluator measures every other sharing member against the radius
// around the self position. It reruns whenever its inputs change.
type GeofenceEvaluator struct {
	selfID string
	radius int
	alerts *AlertManager

	self     *shared.Position
	snapshot *group.Snapshot
}

// NewGeofenceEvaluator creates an evaluator excluding selfID
func NewGeofenceEvaluator(selfID string, radius int, alerts *AlertManager) *GeofenceEvaluator {
	if radius <= 0 {
		radius = DefaultRangeRadius
	}
	return &GeofenceEvaluator{
		selfID:   selfID,
		radius:   radius,
		alerts:   alerts,
		snapshot: group.EmptySnapshot(),
	}
}

// OnSnapshot takes a new snapshot and evaluates
func (g *GeofenceEvaluator) OnSnapshot(snap *group.Snapshot) {
	g.snapshot = snap
	g.Evaluate()
}

// OnPosition takes a new self position and evaluates
func (g *GeofenceEvaluator) OnPosition(pos shared.Position) {
	g.self = &pos
	g.Evaluate()
}

// SetRadius changes the radius and evaluates
func (g *GeofenceEvaluator) SetRadius(meters int) {
	if meters <= 0 || meters == g.radius {
		return
	}
	g.radius = meters
	g.Evaluate()
}

// Radius returns the radius in meters
func (g *GeofenceEvaluator) Radius() int {
	return g.radius
}

// Distance returns the distance from self to member, if self is known
func (g *GeofenceEvaluator) Distance(member group.MemberLocation) (float64, bool) {
	if g.self == nil {
		return 0, false
	}
	return g.self.DistanceTo(member.Position()), true
}

// Evaluate checks every member and returns the alerts raised
func (g *GeofenceEvaluator) Evaluate() []group.AlertRecord {
	if g.self == nil || g.snapshot.Len() == 0 {
		return nil
	}

	var raised []group.AlertRecord
	for _, member := range g.snapshot.Visible() {
		if member.MemberID == g.selfID {
			continue
		}
		d := g.self.DistanceTo(member.Position())
		if d <= float64(g.radius) {
			continue
		}
		if record, ok := g.alerts.Breach(member, d); ok {
			raised = append(raised, record)
		}
	}
	return raised
}
