package overlay

import "time"

// lane records the footprint of the most recent occupant of one horizontal
// track. The relation is one-directional: a lane never holds a reference to
// the message itself, because only the last footprint matters for the next
// admission decision.
type lane struct {
	lastStart  time.Time // zero means never occupied
	lastExit   time.Time
	lastWidth  float64
	lastHeight float64
}

// readyAt returns the earliest instant a new occupant may start in this lane
// without overlapping the previous one. The zero time means "ready now".
//
// Two conditions must both hold:
//
//   - horizontal: the previous occupant has cleared its own width plus the
//     safe distance at the current effective speed, so both can traverse
//     without touching;
//   - vertical: a minimum dwell time proportional to the previous occupant's
//     height has elapsed, so rapid-fire narrow messages do not stack.
func (l *lane) readyAt(effectiveSpeed, minSafeDistance float64) time.Time {
	if l.lastStart.IsZero() {
		return time.Time{}
	}
	horizontal := l.lastStart.Add(traversalTime(l.lastWidth+minSafeDistance, effectiveSpeed))

	dwell := time.Duration(l.lastHeight*4) * time.Millisecond
	if dwell < VerticalClearMin {
		dwell = VerticalClearMin
	} else if dwell > VerticalClearMax {
		dwell = VerticalClearMax
	}
	vertical := l.lastStart.Add(dwell)

	if vertical.After(horizontal) {
		return vertical
	}
	return horizontal
}

// laneTable is the ordered set of lanes for the current geometry. It is an
// owned, reconstructible arena: geometry changes rebuild it from scratch
// rather than migrating in-flight footprints, so placements made shortly
// after a rebuild are blind to still-visible traversals.
type laneTable struct {
	lanes []lane
	geo   Geometry
}

func newLaneTable(geo Geometry) *laneTable {
	return &laneTable{lanes: make([]lane, geo.LaneCount), geo: geo}
}

// commit records a placement across the block's lanes. Called only once a
// candidate with zero wait has been chosen; deferred candidates never touch
// lane state.
func (t *laneTable) commit(p Placement, start time.Time, width, height float64, exit time.Time) {
	for i := p.LaneStart; i < p.LaneStart+p.LaneSpan; i++ {
		t.lanes[i] = lane{lastStart: start, lastExit: exit, lastWidth: width, lastHeight: height}
	}
}

// shift moves every recorded timestamp forward by d. Used on resume so that
// readiness math after a pause sees the same remaining gaps it saw before.
func (t *laneTable) shift(d time.Duration) {
	for i := range t.lanes {
		if t.lanes[i].lastStart.IsZero() {
			continue
		}
		t.lanes[i].lastStart = t.lanes[i].lastStart.Add(d)
		t.lanes[i].lastExit = t.lanes[i].lastExit.Add(d)
	}
}

// traversalTime converts a pixel distance to the time it takes at the given
// speed. A non-positive speed yields the maximum representable duration so
// callers treat the lane as blocked rather than dividing by zero.
func traversalTime(distancePx, speedPxPerSec float64) time.Duration {
	if speedPxPerSec <= 0 {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(distancePx / speedPxPerSec * float64(time.Second))
}
