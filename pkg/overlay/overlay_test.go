package overlay

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Test Doubles
// =============================================================================

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// manualTimers captures armed timers so tests fire them explicitly.
type manualTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (m *manualTimers) factory(d time.Duration, fn func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.fns = append(m.fns, fn)
	idx := len(m.fns) - 1
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.fns[idx] == nil {
			return false
		}
		m.fns[idx] = nil
		return true
	}
}

func (m *manualTimers) armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, fn := range m.fns {
		if fn != nil {
			n++
		}
	}
	return n
}

func (m *manualTimers) lastDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delays[len(m.delays)-1]
}

// fireLast runs the most recently armed pending timer.
func (m *manualTimers) fireLast(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	var fn func()
	for i := len(m.fns) - 1; i >= 0; i-- {
		if m.fns[i] != nil {
			fn = m.fns[i]
			m.fns[i] = nil
			break
		}
	}
	m.mu.Unlock()
	if fn == nil {
		t.Fatal("no pending timer to fire")
	}
	fn()
}

// sized is the payload the fake renderer interprets as a footprint.
type sized struct {
	w, h float64
}

type fakeMotion struct {
	mu         sync.Mutex
	pauseCalls int
	playCalls  int
	cancelled  bool
	rate       float64
}

func (m *fakeMotion) Pause() {
	m.mu.Lock()
	m.pauseCalls++
	m.mu.Unlock()
}

func (m *fakeMotion) Play() {
	m.mu.Lock()
	m.playCalls++
	m.mu.Unlock()
}

func (m *fakeMotion) Cancel() {
	m.mu.Lock()
	m.cancelled = true
	m.mu.Unlock()
}

func (m *fakeMotion) SetRate(rate float64) {
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()
}

type fakeRendered struct {
	msg       Message
	w, h      float64
	clock     *fakeClock
	sizeCalls int

	started    bool
	startedAt  time.Time
	placement  Placement
	duration   time.Duration
	rate       float64
	onComplete func()
	motion     *fakeMotion
	discarded  bool
}

func (r *fakeRendered) Size() (float64, float64) {
	r.sizeCalls++
	return r.w, r.h
}

func (r *fakeRendered) Start(p Placement, duration time.Duration, rate float64, onComplete func()) Motion {
	r.started = true
	if r.clock != nil {
		r.startedAt = r.clock.Now()
	}
	r.placement = p
	r.duration = duration
	r.rate = rate
	r.onComplete = onComplete
	r.motion = &fakeMotion{rate: rate}
	return r.motion
}

func (r *fakeRendered) Discard() { r.discarded = true }

type fakeRenderer struct {
	clock    *fakeClock
	mountErr error
	mounted  []*fakeRendered
}

func (f *fakeRenderer) Mount(msg Message) (RenderedMessage, error) {
	if f.mountErr != nil {
		return nil, f.mountErr
	}
	sz, _ := msg.Payload.(sized)
	r := &fakeRendered{msg: msg, w: sz.w, h: sz.h, clock: f.clock}
	f.mounted = append(f.mounted, r)
	return r, nil
}

// placed returns the rendered messages whose traversal has started.
func (f *fakeRenderer) placed() []*fakeRendered {
	var out []*fakeRendered
	for _, r := range f.mounted {
		if r.started {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	ov       *Overlay
	clock    *fakeClock
	timers   *manualTimers
	renderer *fakeRenderer
}

func newHarness(t *testing.T, geo Geometry, settings Settings) *harness {
	t.Helper()
	h := &harness{
		clock:  newFakeClock(),
		timers: &manualTimers{},
	}
	h.renderer = &fakeRenderer{clock: h.clock}
	ov, err := New(h.renderer, geo, settings,
		WithClock(h.clock),
		WithTimerFactory(h.timers.factory),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.ov = ov
	return h
}

// oneLane is a single-lane surface wide enough for the standard scenarios.
func oneLane() Geometry {
	return Geometry{Width: 640, Height: 100, LaneHeight: 28, LaneCount: 1}
}

func baseSettings() Settings {
	return Settings{FontSize: 24, SpeedPxPerSec: 200, MaxMessagesPerSecond: 10}
}

// =============================================================================
// Placement Flow
// =============================================================================

func TestAddMessagePlacesImmediatelyOnEmptyLane(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 400, h: 20}))

	placed := h.renderer.placed()
	if len(placed) != 1 {
		t.Fatalf("placed = %d, want 1", len(placed))
	}
	r := placed[0]
	if r.placement.LaneStart != 0 || r.placement.LaneSpan != 1 {
		t.Errorf("placement = %+v, want lane 0 span 1", r.placement)
	}
	// Traversal covers surface width plus the message's own width.
	want := time.Duration((640 + 400) / 200.0 * float64(time.Second))
	if r.duration != want {
		t.Errorf("duration = %v, want %v", r.duration, want)
	}

	st := h.ov.Stats()
	if st.Placed != 1 || st.Active != 1 || st.Pending != 0 {
		t.Errorf("stats = %+v, want placed=1 active=1 pending=0", st)
	}
}

func TestSecondMessageDeferredUntilLaneClears(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	// A occupies the lane. B must wait until A has cleared its own width plus
	// the safe distance: (400+24)/200 = 2.12s.
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 400, h: 20}))
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 100, h: 20}))

	if got := len(h.renderer.placed()); got != 1 {
		t.Fatalf("placed = %d, want 1 (B deferred)", got)
	}
	if st := h.ov.Stats(); st.Pending != 1 {
		t.Fatalf("pending = %d, want 1", st.Pending)
	}
	// The retry delay is clamped to the maximum even though the true wait is
	// longer.
	if h.timers.armed() != 1 {
		t.Fatalf("armed timers = %d, want 1", h.timers.armed())
	}
	if d := h.timers.lastDelay(); d != RetryMaxDelay {
		t.Errorf("retry delay = %v, want %v", d, RetryMaxDelay)
	}

	// Just before readiness, nothing changes.
	h.clock.Advance(2119 * time.Millisecond)
	h.ov.ProcessQueue()
	if got := len(h.renderer.placed()); got != 1 {
		t.Fatalf("placed = %d before lane clear, want 1", got)
	}

	// At readiness, B goes out.
	h.clock.Advance(1 * time.Millisecond)
	h.ov.ProcessQueue()
	placed := h.renderer.placed()
	if len(placed) != 2 {
		t.Fatalf("placed = %d after lane clear, want 2", len(placed))
	}
	if st := h.ov.Stats(); st.Pending != 0 || st.Placed != 2 {
		t.Errorf("stats = %+v, want pending=0 placed=2", st)
	}
}

func TestRetryTimerFireDrainsQueue(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 400, h: 20}))
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 100, h: 20}))

	// Walk the retry chain: each fire re-arms until the lane is ready.
	for i := 0; i < 10 && h.ov.Stats().Pending > 0; i++ {
		h.clock.Advance(h.timers.lastDelay())
		h.timers.fireLast(t)
	}
	if st := h.ov.Stats(); st.Pending != 0 || st.Placed != 2 {
		t.Errorf("stats after retries = %+v, want pending=0 placed=2", st)
	}
}

func TestMultiLaneSpanCommitsWholeBlock(t *testing.T) {
	geo := Geometry{Width: 640, Height: 200, LaneHeight: 28, LaneCount: 4}
	h := newHarness(t, geo, baseSettings())

	// height 50 + padding 4 spans ceil(54/28) = 2 lanes.
	h.ov.AddMessage(NewMessage(KindHighlight, sized{w: 200, h: 50}))

	placed := h.renderer.placed()
	if len(placed) != 1 {
		t.Fatalf("placed = %d, want 1", len(placed))
	}
	if p := placed[0].placement; p.LaneStart != 0 || p.LaneSpan != 2 {
		t.Fatalf("placement = %+v, want lane 0 span 2", p)
	}
	for i, l := range h.ov.lanes.lanes {
		occupied := !l.lastStart.IsZero()
		if want := i < 2; occupied != want {
			t.Errorf("lane %d occupied = %v, want %v", i, occupied, want)
		}
	}
}

func TestInfeasibleFootprintDroppedPermanently(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	// Spans 2 lanes on a 1-lane surface: no amount of waiting helps.
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 100, h: 60}))

	st := h.ov.Stats()
	if st.DroppedInfeasible != 1 || st.Pending != 0 || st.Placed != 0 {
		t.Errorf("stats = %+v, want dropped=1 pending=0 placed=0", st)
	}
	if !h.renderer.mounted[0].discarded {
		t.Error("infeasible message was not discarded")
	}
	if h.timers.armed() != 0 {
		t.Error("retry timer armed with nothing pending")
	}
}

func TestMountFailureDropsMessage(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())
	h.renderer.mountErr = fmt.Errorf("boom")

	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 100, h: 20}))

	st := h.ov.Stats()
	if st.MountFailures != 1 || st.Pending != 0 {
		t.Errorf("stats = %+v, want mount_failures=1 pending=0", st)
	}
}

// =============================================================================
// Ingress Cap
// =============================================================================

func TestIngressCapDiscardsOverflow(t *testing.T) {
	s := baseSettings()
	s.MaxMessagesPerSecond = 2
	h := newHarness(t, oneLane(), s)

	for i := 0; i < 5; i++ {
		h.ov.AddMessage(NewMessage(KindNormal, sized{w: 10, h: 20}))
	}

	st := h.ov.Stats()
	if st.Admitted != 2 || st.RateLimited != 3 {
		t.Errorf("admitted=%d rateLimited=%d, want 2 and 3", st.Admitted, st.RateLimited)
	}

	// A fresh window admits again.
	h.clock.Advance(time.Second)
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 10, h: 20}))
	if st := h.ov.Stats(); st.Admitted != 3 {
		t.Errorf("admitted after window roll = %d, want 3", st.Admitted)
	}
}

// =============================================================================
// Lookahead Bound
// =============================================================================

func TestQueueLookaheadIsBounded(t *testing.T) {
	s := baseSettings()
	s.MaxMessagesPerSecond = 20
	h := newHarness(t, oneLane(), s)

	// Queue 15 messages while paused so nothing is processed on ingestion.
	h.ov.Pause()
	for i := 0; i < 15; i++ {
		h.ov.AddMessage(NewMessage(KindNormal, sized{w: 300, h: 20}))
	}
	h.ov.Resume()

	// One processing pass: the first message is placed, the remainder of the
	// initial window is measured and deferred, and items beyond the window are
	// never touched.
	if got := len(h.renderer.placed()); got != 1 {
		t.Fatalf("placed = %d, want 1", got)
	}
	for i, r := range h.renderer.mounted {
		if i >= QueueLookaheadLimit && r.sizeCalls != 0 {
			t.Errorf("message %d beyond lookahead window was inspected %d times", i, r.sizeCalls)
		}
	}
	if st := h.ov.Stats(); st.Pending != 14 {
		t.Errorf("pending = %d, want 14", st.Pending)
	}
}

// =============================================================================
// Pause / Resume
// =============================================================================

func TestPauseHaltsMotionsAndPlacement(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 400, h: 20}))
	h.ov.Pause()

	if m := h.renderer.placed()[0].motion; m.pauseCalls != 1 {
		t.Errorf("motion pause calls = %d, want 1", m.pauseCalls)
	}

	// Ingestion during pause queues but never places.
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 10, h: 20}))
	if st := h.ov.Stats(); st.Pending != 1 || st.Placed != 1 {
		t.Errorf("stats during pause = %+v, want pending=1 placed=1", st)
	}
	if h.timers.armed() != 0 {
		t.Error("retry timer armed while paused")
	}
}

func TestResumeShiftsTimingByPausedDuration(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	// A occupies the lane; B is blocked until t0+2.12s.
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 400, h: 20}))
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 100, h: 20}))

	h.ov.Pause()
	h.clock.Advance(5 * time.Second)
	h.ov.Resume()

	if m := h.renderer.placed()[0].motion; m.playCalls != 1 {
		t.Errorf("motion play calls = %d, want 1", m.playCalls)
	}

	// The lane shifted with the pause: B still waits the same remaining gap,
	// now anchored at t0+5s.
	h.clock.Advance(2119 * time.Millisecond)
	h.ov.ProcessQueue()
	if got := len(h.renderer.placed()); got != 1 {
		t.Fatalf("placed = %d right before shifted readiness, want 1", got)
	}
	h.clock.Advance(1 * time.Millisecond)
	h.ov.ProcessQueue()
	if got := len(h.renderer.placed()); got != 2 {
		t.Fatalf("placed = %d at shifted readiness, want 2", got)
	}
}

func TestPauseResumeIdempotent(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 100, h: 20}))

	h.ov.Pause()
	h.ov.Pause()
	h.ov.Resume()
	h.ov.Resume()

	m := h.renderer.placed()[0].motion
	if m.pauseCalls != 1 || m.playCalls != 1 {
		t.Errorf("pause/play calls = %d/%d, want 1/1", m.pauseCalls, m.playCalls)
	}
	if h.ov.Paused() {
		t.Error("overlay still paused after Resume")
	}
}

// =============================================================================
// Playback Rate
// =============================================================================

func TestSetPlaybackRateScalesReadiness(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 400, h: 20}))
	h.ov.SetPlaybackRate(2.0)
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 100, h: 20}))

	if m := h.renderer.placed()[0].motion; m.rate != 2.0 {
		t.Errorf("active motion rate = %g, want 2.0", m.rate)
	}

	// At rate 2 the effective speed doubles, so the gap clears at
	// (400+24)/400 = 1.06s instead of 2.12s.
	h.clock.Advance(1060 * time.Millisecond)
	h.ov.ProcessQueue()
	if got := len(h.renderer.placed()); got != 2 {
		t.Fatalf("placed = %d at doubled rate, want 2", got)
	}
}

func TestSetPlaybackRateRejectsNonPositive(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	h.ov.SetPlaybackRate(0)
	h.ov.SetPlaybackRate(-1.5)

	if r := h.ov.PlaybackRate(); r != 1.0 {
		t.Errorf("rate = %g after invalid updates, want 1.0", r)
	}
}

// =============================================================================
// Geometry Updates
// =============================================================================

func TestSetSurfaceRebuildsLaneGrid(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	h.ov.SetSurface(1920, 1080)

	geo := h.ov.Geometry()
	if geo.Width != 1920 || geo.Height != 1080 {
		t.Errorf("geometry = %+v, want 1920x1080", geo)
	}
	// 1080 * 0.85 usable / (24*1.4) lane height = 27 lanes.
	if geo.LaneCount != 27 {
		t.Errorf("lane count = %d, want 27", geo.LaneCount)
	}
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())
	if err := h.ov.UpdateSettings(Settings{FontSize: -1}); err == nil {
		t.Fatal("UpdateSettings accepted a negative font size")
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestExpiryRemovesFromActiveSet(t *testing.T) {
	var expired []Message
	clock := newFakeClock()
	renderer := &fakeRenderer{clock: clock}
	ov, err := New(renderer, oneLane(), baseSettings(),
		WithClock(clock),
		WithExpiredFunc(func(m Message, _ Placement) { expired = append(expired, m) }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	msg := NewMessage(KindNormal, sized{w: 100, h: 20})
	ov.AddMessage(msg)
	renderer.placed()[0].onComplete()

	st := ov.Stats()
	if st.Active != 0 || st.Expired != 1 {
		t.Errorf("stats = %+v, want active=0 expired=1", st)
	}
	if len(expired) != 1 || expired[0].ID != msg.ID {
		t.Errorf("expired callback got %v, want message %s", expired, msg.ID)
	}

	// A late duplicate completion is ignored.
	renderer.placed()[0].onComplete()
	if st := ov.Stats(); st.Expired != 1 {
		t.Errorf("expired = %d after duplicate completion, want 1", st.Expired)
	}
}

func TestClearCancelsEverything(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 400, h: 20}))
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 100, h: 20})) // pending
	h.ov.Clear()

	if !h.renderer.mounted[0].motion.cancelled {
		t.Error("active motion not cancelled")
	}
	for i, r := range h.renderer.mounted {
		if !r.discarded {
			t.Errorf("message %d not discarded", i)
		}
	}
	if st := h.ov.Stats(); st.Active != 0 || st.Pending != 0 {
		t.Errorf("stats = %+v, want active=0 pending=0", st)
	}
}

func TestDestroyDisablesOverlay(t *testing.T) {
	h := newHarness(t, oneLane(), baseSettings())

	h.ov.Destroy()
	h.ov.AddMessage(NewMessage(KindNormal, sized{w: 100, h: 20}))
	h.ov.ProcessQueue()
	h.ov.Pause()
	h.ov.Resume()

	if st := h.ov.Stats(); st.Admitted != 0 || st.Placed != 0 {
		t.Errorf("stats after destroy = %+v, want no activity", st)
	}
}

// =============================================================================
// No-Overlap Property
// =============================================================================

// TestNoOverlapUnderRandomLoad feeds random bursts through the scheduler and
// verifies that every pair of consecutive occupants of a lane respects both
// the horizontal safe distance and the vertical dwell at commit time.
func TestNoOverlapUnderRandomLoad(t *testing.T) {
	geo := Geometry{Width: 800, Height: 300, LaneHeight: 28, LaneCount: 6}
	s := Settings{FontSize: 24, SpeedPxPerSec: 150, MaxMessagesPerSecond: 50}
	h := newHarness(t, geo, s)

	rng := rand.New(rand.NewSource(42))
	for step := 0; step < 400; step++ {
		if rng.Intn(3) > 0 {
			w := 50 + rng.Float64()*400
			hgt := 20 + rng.Float64()*20
			h.ov.AddMessage(NewMessage(KindNormal, sized{w: w, h: hgt}))
		}
		h.clock.Advance(time.Duration(rng.Intn(400)) * time.Millisecond)
		h.ov.ProcessQueue()

		// Let finished traversals expire so the active set stays small.
		for _, r := range h.renderer.placed() {
			if r.onComplete != nil && h.clock.Now().Sub(r.startedAt) >= r.duration {
				r.onComplete()
				r.onComplete = nil
			}
		}
	}

	type commit struct {
		start  time.Time
		width  float64
		height float64
	}
	byLane := make(map[int][]commit)
	for _, r := range h.renderer.placed() {
		for lane := r.placement.LaneStart; lane < r.placement.LaneStart+r.placement.LaneSpan; lane++ {
			byLane[lane] = append(byLane[lane], commit{start: r.startedAt, width: r.w, height: r.h})
		}
	}

	minSafe := s.MinSafeDistance()
	for lane, commits := range byLane {
		sort.Slice(commits, func(i, j int) bool { return commits[i].start.Before(commits[j].start) })
		for i := 1; i < len(commits); i++ {
			prev, cur := commits[i-1], commits[i]
			gap := cur.start.Sub(prev.start)
			horizontal := time.Duration((prev.width + minSafe) / s.SpeedPxPerSec * float64(time.Second))
			dwell := time.Duration(prev.height*4) * time.Millisecond
			if dwell < VerticalClearMin {
				dwell = VerticalClearMin
			} else if dwell > VerticalClearMax {
				dwell = VerticalClearMax
			}
			if gap < dwell {
				t.Fatalf("lane %d: commit %d only %v after previous, dwell minimum is %v", lane, i, gap, dwell)
			}
			if gap < horizontal {
				t.Fatalf("lane %d: commit %d gap %v violates horizontal clearance %v", lane, i, gap, horizontal)
			}
		}
	}
	if h.ov.Stats().Placed == 0 {
		t.Fatal("scenario placed nothing")
	}
}
