package overlay

import (
	"testing"
	"time"
)

func TestRetryTimerArmReplacesPending(t *testing.T) {
	timers := &manualTimers{}
	rt := retryTimer{factory: timers.factory}

	first, second := 0, 0
	rt.Arm(50*time.Millisecond, func() { first++ })
	rt.Arm(80*time.Millisecond, func() { second++ })

	if timers.armed() != 1 {
		t.Fatalf("pending timers = %d, want 1 (first cancelled)", timers.armed())
	}
	timers.fireLast(t)
	if first != 0 || second != 1 {
		t.Errorf("callbacks = %d/%d, want only the replacement to fire", first, second)
	}
	// State bookkeeping still says armed until Cancel; the fire path is owned
	// by the scheduler, which re-arms or cancels on its next pass.
	rt.Cancel()
	if rt.Armed() {
		t.Error("Armed() = true after Cancel")
	}
}

func TestRetryTimerCancelIdempotent(t *testing.T) {
	timers := &manualTimers{}
	rt := retryTimer{factory: timers.factory}

	rt.Cancel()
	rt.Arm(time.Millisecond, func() {})
	rt.Cancel()
	rt.Cancel()

	if timers.armed() != 0 {
		t.Errorf("pending timers = %d after cancel, want 0", timers.armed())
	}
}
