package overlay

import (
	"math"
	"time"
)

// Placement is the lane-block assignment given to a message before it becomes
// active.
type Placement struct {
	LaneStart int
	LaneSpan  int
}

// findPlacement computes the earliest contiguous lane block that can hold a
// footprint of the given height without violating the no-overlap invariant.
//
// The returned wait is zero when the block is ready now; the caller commits
// in that case only. A positive wait means "try again no earlier than
// now+wait" — lane state is left untouched. ok is false when the footprint
// spans more lanes than exist, which is permanent: no amount of waiting makes
// it placeable.
func (t *laneTable) findPlacement(now time.Time, footprintHeight, effectiveSpeed, minSafeDistance, verticalPadding float64) (p Placement, wait time.Duration, ok bool) {
	span := int(math.Ceil((footprintHeight + verticalPadding) / t.geo.LaneHeight))
	if span < 1 {
		span = 1
	}
	if span > len(t.lanes) {
		return Placement{}, 0, false
	}

	// Earliest block wins; ties break toward the lowest starting lane, which
	// keeps the choice stable and deterministic.
	bestStart := -1
	var bestReady time.Time
	for start := 0; start+span <= len(t.lanes); start++ {
		ready := now
		for i := start; i < start+span; i++ {
			if r := t.lanes[i].readyAt(effectiveSpeed, minSafeDistance); r.After(ready) {
				ready = r
			}
		}
		if bestStart < 0 || ready.Before(bestReady) {
			bestStart, bestReady = start, ready
		}
	}

	wait = bestReady.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return Placement{LaneStart: bestStart, LaneSpan: span}, ceilToMillisecond(wait), true
}

// ceilToMillisecond rounds a wait up to a whole millisecond so retry
// deadlines never undershoot the computed readiness instant.
func ceilToMillisecond(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if rem := d % time.Millisecond; rem != 0 {
		d += time.Millisecond - rem
	}
	return d
}
