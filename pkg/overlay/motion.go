package overlay

import (
	"sync"
	"time"
)

// Motion is a cancellable traversal animation owned by the render surface.
// The scheduler drives it through this capability interface only, so the core
// stays independent of any specific animation mechanism.
type Motion interface {
	// Pause halts the traversal in place.
	Pause()
	// Play resumes a paused traversal.
	Play()
	// Cancel aborts the traversal; the completion callback must not fire
	// afterwards.
	Cancel()
	// SetRate changes the speed multiplier of an in-flight traversal.
	SetRate(rate float64)
}

// RenderedMessage is a message that has been mounted invisibly and measured.
// Footprints are unknown until mount, so placement is always a two-step
// mount-then-place process.
type RenderedMessage interface {
	// Size returns the measured footprint in pixels.
	Size() (width, height float64)

	// Start begins the traversal for a committed placement. duration is the
	// traversal time at playback rate 1.0; the motion applies rate itself.
	// onComplete fires exactly once when the traversal finishes and never
	// after Cancel.
	Start(p Placement, duration time.Duration, rate float64, onComplete func()) Motion

	// Discard releases the mounted representation without animating. Called
	// for messages dropped after measurement.
	Discard()
}

// Renderer mounts messages on the surface. Mount must leave the message
// invisible; it becomes visible when Start is called on the result.
type Renderer interface {
	Mount(msg Message) (RenderedMessage, error)
}

// =============================================================================
// TimedMotion
// =============================================================================

// TimedMotion is a wall-clock Motion implementation. It tracks traversal
// progress as a completed fraction folded at every pause/rate boundary, and
// fires its completion callback from an internal timer. Surfaces that draw
// frames (terminals, canvases) read Progress each frame to position the
// message.
type TimedMotion struct {
	mu           sync.Mutex
	base         time.Duration // traversal time at rate 1.0
	rate         float64
	done         float64 // fraction completed at the last segment boundary
	segmentStart time.Time
	running      bool
	finished     bool
	cancelled    bool
	timer        *time.Timer
	onComplete   func()
}

// NewTimedMotion starts a motion immediately. base is the traversal time at
// rate 1.0. onComplete may be nil.
func NewTimedMotion(base time.Duration, rate float64, onComplete func()) *TimedMotion {
	if rate <= 0 {
		rate = 1
	}
	m := &TimedMotion{base: base, rate: rate, onComplete: onComplete}
	m.mu.Lock()
	m.startSegmentLocked()
	m.mu.Unlock()
	return m
}

// Pause implements Motion.
func (m *TimedMotion) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelled || m.finished || !m.running {
		return
	}
	m.foldLocked()
}

// Play implements Motion.
func (m *TimedMotion) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelled || m.finished || m.running {
		return
	}
	m.startSegmentLocked()
}

// Cancel implements Motion. The completion callback will not fire after
// Cancel returns.
func (m *TimedMotion) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
	m.running = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// SetRate implements Motion. Progress accumulated so far is preserved; only
// the remaining traversal is rescaled. Non-positive rates are ignored.
func (m *TimedMotion) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelled || m.finished {
		return
	}
	wasRunning := m.running
	if wasRunning {
		m.foldLocked()
	}
	m.rate = rate
	if wasRunning {
		m.startSegmentLocked()
	}
}

// Progress returns the completed fraction of the traversal in [0, 1].
func (m *TimedMotion) Progress() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return 1
	}
	p := m.done
	if m.running {
		if scaled := float64(m.base) / m.rate; scaled > 0 {
			p += float64(time.Since(m.segmentStart)) / scaled
		}
	}
	if p > 1 {
		p = 1
	}
	return p
}

// Done reports whether the traversal completed (not cancelled).
func (m *TimedMotion) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// startSegmentLocked begins a new running segment and arms the completion
// timer for the remaining scaled duration.
func (m *TimedMotion) startSegmentLocked() {
	m.segmentStart = time.Now()
	m.running = true
	remaining := time.Duration((1 - m.done) * float64(m.base) / m.rate)
	if remaining < 0 {
		remaining = 0
	}
	m.timer = time.AfterFunc(remaining, m.fire)
}

// foldLocked accumulates the current segment into done and stops the timer.
func (m *TimedMotion) foldLocked() {
	if m.running {
		if scaled := float64(m.base) / m.rate; scaled > 0 {
			m.done += float64(time.Since(m.segmentStart)) / scaled
		}
		if m.done > 1 {
			m.done = 1
		}
	}
	m.running = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *TimedMotion) fire() {
	m.mu.Lock()
	if m.cancelled || m.finished || !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.finished = true
	m.done = 1
	m.timer = nil
	cb := m.onComplete
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}
