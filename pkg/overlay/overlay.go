package overlay

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/driftlane/driftlane/pkg/observability"
)

// =============================================================================
// Overlay - Admission, Placement and Timing Controller
// =============================================================================

// Overlay is the message admission, lane-placement and timing scheduler.
//
// Every public method does a finite, bounded amount of work and returns
// synchronously; load shedding happens through the ingress cap and the
// bounded queue lookahead, never through blocking. Scheduling failures are
// not errors: under load the overlay degrades by deferring or dropping, and
// the only caller-visible effect is a message not appearing on the surface.
type Overlay struct {
	mu sync.Mutex

	settings Settings
	geo      Geometry
	renderer Renderer
	clock    Clock
	logger   *log.Logger

	lanes  *laneTable
	gate   admissionGate
	queue  pendingQueue
	active map[uuid.UUID]*activeMessage
	retry  retryTimer

	rate      float64
	paused    bool
	pausedAt  time.Time
	destroyed bool

	onExpired func(Message, Placement)

	stats statsCounters
}

// activeMessage is a message currently traversing the surface. It is owned
// exclusively by the active set and removed when its motion completes or is
// forcibly cancelled.
type activeMessage struct {
	msg       Message
	rendered  RenderedMessage
	placement Placement
	start     time.Time
	duration  time.Duration // at rate 1.0
	motion    Motion
}

type statsCounters struct {
	admitted          int64
	rateLimited       int64
	placed            int64
	droppedInfeasible int64
	mountFailures     int64
	expired           int64
}

// Stats is a point-in-time snapshot of overlay counters.
type Stats struct {
	Admitted          int64 `json:"admitted"`
	RateLimited       int64 `json:"rate_limited"`
	Placed            int64 `json:"placed"`
	DroppedInfeasible int64 `json:"dropped_infeasible"`
	MountFailures     int64 `json:"mount_failures"`
	Expired           int64 `json:"expired"`
	Active            int   `json:"active"`
	Pending           int   `json:"pending"`
	LaneCount         int   `json:"lane_count"`
}

// Option configures an Overlay.
type Option func(*Overlay)

// WithLogger sets the diagnostic logger. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(o *Overlay) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(c Clock) Option {
	return func(o *Overlay) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithTimerFactory overrides how the retry timer is scheduled, for
// deterministic tests.
func WithTimerFactory(f TimerFactory) Option {
	return func(o *Overlay) {
		if f != nil {
			o.retry.factory = f
		}
	}
}

// WithExpiredFunc registers a callback invoked after a message's traversal
// completes and it leaves the active set.
func WithExpiredFunc(fn func(Message, Placement)) Option {
	return func(o *Overlay) { o.onExpired = fn }
}

// New creates an overlay for the given surface geometry. settings are
// validated and defaulted in place.
func New(renderer Renderer, geo Geometry, settings Settings, opts ...Option) (*Overlay, error) {
	if err := settings.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	o := &Overlay{
		settings: settings,
		geo:      geo,
		renderer: renderer,
		clock:    systemClock{},
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
		lanes:    newLaneTable(geo),
		gate:     admissionGate{limit: settings.MaxMessagesPerSecond},
		active:   make(map[uuid.UUID]*activeMessage),
		retry:    retryTimer{factory: systemTimer},
		rate:     1.0,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// =============================================================================
// Ingestion
// =============================================================================

// AddMessage ingests one message. It applies the ingress cap, mounts and
// measures the message, queues it, and attempts placement immediately unless
// the overlay is paused. Messages above the cap are silently discarded.
func (o *Overlay) AddMessage(msg Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}

	now := o.clock.Now()
	if !o.gate.admit(now) {
		o.stats.rateLimited++
		observability.Scheduler().OnRateLimited()
		return
	}
	o.stats.admitted++
	observability.Scheduler().OnAdmitted(msg.Kind.String())

	rendered, err := o.renderer.Mount(msg)
	if err != nil {
		o.stats.mountFailures++
		o.logger.Warn("mount failed, dropping message", "id", msg.ID, "err", err)
		observability.Scheduler().OnDropped("mount_failed")
		return
	}

	o.queue.push(&pendingItem{msg: msg, rendered: rendered, nextAttempt: now})
	if !o.paused {
		o.processQueueLocked()
	}
}

// ProcessQueue drains what it can from the pending queue. It is idempotent
// and a no-op while paused; normally the overlay calls it by itself on
// ingestion, retry-timer fire and resume.
func (o *Overlay) ProcessQueue() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.destroyed {
		o.processQueueLocked()
	}
}

// processQueueLocked scans up to QueueLookaheadLimit items from the front of
// the queue. Each successful placement or permanent drop restarts the pass,
// since committed lane state may change the outcome for earlier-skipped
// items; the scan window is fixed at entry and only shrinks, so one call
// never inspects queue positions beyond the initial window. When nothing
// progresses and items remain, a single retry timer is armed with the
// smallest wait observed in the final pass.
func (o *Overlay) processQueueLocked() {
	if o.paused || o.destroyed {
		return
	}
	o.retry.Cancel()

	window := o.queue.len()
	if window > QueueLookaheadLimit {
		window = QueueLookaheadLimit
	}

	var minWait time.Duration
	haveWait := false
	for {
		progressed := false
		minWait, haveWait = 0, false
		now := o.clock.Now()

		for i := 0; i < window && i < o.queue.len(); i++ {
			it := o.queue.at(i)

			if it.nextAttempt.After(now) {
				trackWait(&minWait, &haveWait, it.nextAttempt.Sub(now))
				continue
			}

			width, height := it.rendered.Size()
			p, wait, ok := o.lanes.findPlacement(now, height, o.effectiveSpeedLocked(), o.settings.MinSafeDistance(), o.settings.VerticalPaddingPx)
			if !ok {
				it.rendered.Discard()
				o.queue.removeAt(i)
				window--
				o.stats.droppedInfeasible++
				o.logger.Debug("footprint exceeds lane capacity, dropping",
					"id", it.msg.ID, "height", height, "lanes", o.geo.LaneCount)
				observability.Scheduler().OnDropped("infeasible")
				progressed = true
				break
			}
			if wait == 0 {
				o.placeLocked(it, p, now, width, height)
				o.queue.removeAt(i)
				window--
				progressed = true
				break
			}

			it.nextAttempt = now.Add(wait)
			trackWait(&minWait, &haveWait, wait)
			observability.Scheduler().OnDeferred(wait)
		}

		if !progressed {
			break
		}
	}

	if o.queue.len() > 0 {
		delay := RetryMinDelay
		if haveWait {
			delay = clampDelay(minWait)
		}
		o.retry.Arm(delay, o.onRetry)
		observability.Scheduler().OnRetryArmed(delay)
	}
}

func (o *Overlay) onRetry() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.destroyed {
		o.processQueueLocked()
	}
}

// placeLocked commits a zero-wait candidate: lane state is updated, the
// traversal starts, and the message joins the active set.
func (o *Overlay) placeLocked(it *pendingItem, p Placement, now time.Time, width, height float64) {
	base := traversalTime(o.geo.Width+width, o.settings.SpeedPxPerSec)
	actual := traversalTime(o.geo.Width+width, o.effectiveSpeedLocked())
	o.lanes.commit(p, now, width, height, now.Add(actual))

	id := it.msg.ID
	am := &activeMessage{
		msg:       it.msg,
		rendered:  it.rendered,
		placement: p,
		start:     now,
		duration:  base,
	}
	am.motion = it.rendered.Start(p, base, o.rate, func() { o.onMotionComplete(id) })
	o.active[id] = am

	o.stats.placed++
	observability.Scheduler().OnPlaced(p.LaneStart, p.LaneSpan, base)
}

// onMotionComplete removes a finished traversal from the active set. The
// callback may arrive from an arbitrary goroutine; entries already removed by
// Clear or Destroy are ignored.
func (o *Overlay) onMotionComplete(id uuid.UUID) {
	o.mu.Lock()
	am, ok := o.active[id]
	if ok {
		delete(o.active, id)
		o.stats.expired++
	}
	fn := o.onExpired
	o.mu.Unlock()

	if ok && fn != nil {
		fn(am.msg, am.placement)
	}
}

// =============================================================================
// Pause / Resume / Rate
// =============================================================================

// Pause halts all active traversals in place, cancels the retry timer and
// records the pause instant. The queue keeps accruing if ingestion continues,
// but no placement attempts happen until Resume. Idempotent.
func (o *Overlay) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.paused || o.destroyed {
		return
	}
	o.paused = true
	o.pausedAt = o.clock.Now()
	o.retry.Cancel()
	for _, am := range o.active {
		am.motion.Pause()
	}
	o.logger.Debug("paused", "active", len(o.active), "pending", o.queue.len())
}

// Resume shifts every lane timestamp and the ingress window forward by the
// paused duration, so readiness math sees the same remaining gaps it saw at
// pause time, then restarts all motions and queue processing. Without the
// shift, stale start times would under-estimate remaining safe gaps and cause
// visible overlap right after resume. Idempotent.
func (o *Overlay) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.paused || o.destroyed {
		return
	}
	pausedFor := o.clock.Now().Sub(o.pausedAt)
	o.lanes.shift(pausedFor)
	o.gate.shift(pausedFor)
	for i := range o.active {
		o.active[i].start = o.active[i].start.Add(pausedFor)
	}
	o.paused = false
	for _, am := range o.active {
		am.motion.Play()
	}
	o.logger.Debug("resumed", "paused_for", pausedFor)
	o.processQueueLocked()
}

// SetPlaybackRate folds the external playback rate into all timing math:
// active motions are rescaled and future placement arithmetic uses the new
// effective speed. Non-positive rates are rejected with a diagnostic and
// leave prior state unchanged.
func (o *Overlay) SetPlaybackRate(rate float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}
	if rate <= 0 {
		o.logger.Warn("ignoring non-positive playback rate", "rate", rate)
		return
	}
	o.rate = rate
	for _, am := range o.active {
		am.motion.SetRate(rate)
	}
	o.logger.Debug("playback rate changed", "rate", rate)
}

// =============================================================================
// Geometry and Settings
// =============================================================================

// UpdateSettings swaps in new settings and rebuilds the lane table from
// scratch. In-flight messages keep animating, but the fresh table no longer
// knows their footprints, so placements made during the short window until
// they exit are blind to them. This mirrors the original behavior of the
// surface rebuild and is accepted as a documented limitation.
func (o *Overlay) UpdateSettings(settings Settings) error {
	if err := settings.ValidateAndSetDefaults(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return nil
	}
	o.settings = settings
	o.gate.limit = settings.MaxMessagesPerSecond
	o.rebuildLocked(ComputeGeometry(o.geo.Width, o.geo.Height, settings))
	return nil
}

// SetSurface reports new surface dimensions (resize). The lane table is
// rebuilt with the same blind-window caveat as UpdateSettings.
func (o *Overlay) SetSurface(width, height float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}
	o.rebuildLocked(ComputeGeometry(width, height, o.settings))
}

// SetGeometry installs an externally computed lane grid. Surfaces with
// non-pixel units (like terminal cells) use this instead of ComputeGeometry.
func (o *Overlay) SetGeometry(geo Geometry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}
	o.rebuildLocked(geo)
}

func (o *Overlay) rebuildLocked(geo Geometry) {
	o.geo = geo
	o.lanes = newLaneTable(geo)
	o.logger.Debug("lane table rebuilt",
		"width", geo.Width, "height", geo.Height, "lanes", geo.LaneCount, "lane_height", geo.LaneHeight)
	if !o.paused {
		o.processQueueLocked()
	}
}

// Geometry returns the current surface geometry.
func (o *Overlay) Geometry() Geometry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.geo
}

// PlaybackRate returns the current playback rate.
func (o *Overlay) PlaybackRate() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}

// Paused reports whether the overlay is paused.
func (o *Overlay) Paused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// Stats returns a snapshot of overlay counters.
func (o *Overlay) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{
		Admitted:          o.stats.admitted,
		RateLimited:       o.stats.rateLimited,
		Placed:            o.stats.placed,
		DroppedInfeasible: o.stats.droppedInfeasible,
		MountFailures:     o.stats.mountFailures,
		Expired:           o.stats.expired,
		Active:            len(o.active),
		Pending:           o.queue.len(),
		LaneCount:         o.geo.LaneCount,
	}
}

// =============================================================================
// Teardown
// =============================================================================

// Clear cancels every active traversal and empties both the active set and
// the pending queue. Lane timing history is left alone; callers invalidating
// geometry follow up with UpdateSettings or SetSurface.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearLocked()
}

func (o *Overlay) clearLocked() {
	o.retry.Cancel()
	for id, am := range o.active {
		am.motion.Cancel()
		am.rendered.Discard()
		delete(o.active, id)
	}
	for _, it := range o.queue.drain() {
		it.rendered.Discard()
	}
}

// Destroy clears the overlay and permanently disables it; all further calls
// are no-ops.
func (o *Overlay) Destroy() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}
	o.clearLocked()
	o.destroyed = true
}

// =============================================================================
// Helpers
// =============================================================================

// effectiveSpeedLocked is the nominal speed scaled by the playback rate; it
// feeds both traversal durations and horizontal-readiness math so lane
// availability always reflects the current rate, not the rate at enqueue
// time.
func (o *Overlay) effectiveSpeedLocked() float64 {
	return o.settings.SpeedPxPerSec * o.rate
}

func trackWait(min *time.Duration, have *bool, d time.Duration) {
	if !*have || d < *min {
		*min = d
		*have = true
	}
}

func clampDelay(d time.Duration) time.Duration {
	if d < RetryMinDelay {
		return RetryMinDelay
	}
	if d > RetryMaxDelay {
		return RetryMaxDelay
	}
	return d
}
