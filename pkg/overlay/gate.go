package overlay

import "time"

// admissionGate is the rolling one-second ingress cap. It is a hard limit
// applied before queueing: a message rejected here is never created at all,
// which is distinct from the lane-capacity drop that happens after mounting.
type admissionGate struct {
	limit       int
	windowStart time.Time
	count       int
}

// admit reports whether a message arriving at now fits the current window.
// A window opens on the first admission and rolls forward once a full second
// has elapsed.
func (g *admissionGate) admit(now time.Time) bool {
	if g.windowStart.IsZero() || now.Sub(g.windowStart) >= time.Second {
		g.windowStart = now
		g.count = 0
	}
	if g.count >= g.limit {
		return false
	}
	g.count++
	return true
}

// shift moves the window start forward by d, mirroring the lane-table shift
// on resume. Without it a long pause would be counted against the window and
// post-resume ingestion would briefly over-admit.
func (g *admissionGate) shift(d time.Duration) {
	if !g.windowStart.IsZero() {
		g.windowStart = g.windowStart.Add(d)
	}
}
