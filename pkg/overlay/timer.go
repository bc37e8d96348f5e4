package overlay

import "time"

// TimerFactory schedules fn to run after d and returns a stop function.
// The stop function reports whether it prevented fn from running.
type TimerFactory func(d time.Duration, fn func()) (stop func() bool)

// systemTimer is the production TimerFactory, backed by time.AfterFunc.
func systemTimer(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// retryTimer is a single-owned deferred task handle with cancel-and-replace
// semantics: arming it cancels whatever was armed before, so at most one
// retry callback is ever outstanding.
//
// retryTimer has no lock of its own; the owning Overlay serializes access.
type retryTimer struct {
	factory TimerFactory
	stop    func() bool
	armed   bool
}

// Arm replaces any pending callback with fn, scheduled after d.
func (t *retryTimer) Arm(d time.Duration, fn func()) {
	t.Cancel()
	t.stop = t.factory(d, fn)
	t.armed = true
}

// Cancel drops the pending callback, if any.
func (t *retryTimer) Cancel() {
	if t.armed && t.stop != nil {
		t.stop()
	}
	t.stop = nil
	t.armed = false
}

// Armed reports whether a callback is pending.
func (t *retryTimer) Armed() bool { return t.armed }
