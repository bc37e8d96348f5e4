package overlay

import (
	"testing"
	"time"
)

func TestTimedMotionCompletes(t *testing.T) {
	done := make(chan struct{})
	m := NewTimedMotion(20*time.Millisecond, 1.0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}
	if !m.Done() {
		t.Error("Done() = false after completion")
	}
	if p := m.Progress(); p != 1 {
		t.Errorf("Progress() = %g after completion, want 1", p)
	}
}

func TestTimedMotionCancelSuppressesCallback(t *testing.T) {
	fired := make(chan struct{}, 1)
	m := NewTimedMotion(30*time.Millisecond, 1.0, func() { fired <- struct{}{} })
	m.Cancel()

	select {
	case <-fired:
		t.Fatal("callback fired after Cancel")
	case <-time.After(100 * time.Millisecond):
	}
	if m.Done() {
		t.Error("cancelled motion reported Done")
	}
}

func TestTimedMotionPauseFreezesProgress(t *testing.T) {
	m := NewTimedMotion(10*time.Second, 1.0, nil)
	time.Sleep(10 * time.Millisecond)
	m.Pause()

	p1 := m.Progress()
	time.Sleep(30 * time.Millisecond)
	p2 := m.Progress()
	if p1 != p2 {
		t.Errorf("progress moved while paused: %g then %g", p1, p2)
	}

	m.Play()
	time.Sleep(10 * time.Millisecond)
	if p3 := m.Progress(); p3 <= p2 {
		t.Errorf("progress did not advance after Play: %g then %g", p2, p3)
	}
}

func TestTimedMotionProgressMonotonic(t *testing.T) {
	m := NewTimedMotion(200*time.Millisecond, 1.0, nil)
	defer m.Cancel()

	prev := m.Progress()
	for i := 0; i < 10; i++ {
		time.Sleep(5 * time.Millisecond)
		p := m.Progress()
		if p < prev {
			t.Fatalf("progress regressed from %g to %g", prev, p)
		}
		if p > 1 {
			t.Fatalf("progress exceeded 1: %g", p)
		}
		prev = p
	}
}

func TestTimedMotionSetRatePreservesProgress(t *testing.T) {
	m := NewTimedMotion(10*time.Second, 1.0, nil)
	defer m.Cancel()
	time.Sleep(20 * time.Millisecond)

	before := m.Progress()
	m.SetRate(4.0)
	after := m.Progress()

	// Rescaling applies to the remainder only; accumulated progress must not
	// jump backwards.
	if after < before {
		t.Errorf("progress dropped from %g to %g on rate change", before, after)
	}
	if after > before+0.05 {
		t.Errorf("progress jumped from %g to %g on rate change", before, after)
	}
}

func TestTimedMotionSetRateIgnoresNonPositive(t *testing.T) {
	m := NewTimedMotion(time.Second, 1.0, nil)
	defer m.Cancel()
	m.SetRate(0)
	m.SetRate(-2)
	// Still running at the original rate; Progress stays within bounds.
	if p := m.Progress(); p < 0 || p > 1 {
		t.Errorf("Progress() = %g, want within [0,1]", p)
	}
}
