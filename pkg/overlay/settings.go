package overlay

import (
	"math"
	"time"

	"github.com/driftlane/driftlane/pkg/errors"
)

// =============================================================================
// Tuning Constants
// =============================================================================

const (
	// LaneHeightScale converts font size to lane height.
	LaneHeightScale = 1.4

	// SafeDistanceScale converts font size to the minimum horizontal gap
	// between consecutive occupants of a lane.
	SafeDistanceScale = 0.5

	// SafeDistanceMin is the floor for the horizontal gap in pixels.
	SafeDistanceMin = 24.0

	// VerticalClearMin and VerticalClearMax bound the per-lane dwell time a
	// new occupant must wait after the previous one started, regardless of
	// width. This stops narrow messages from stacking visually.
	VerticalClearMin = 300 * time.Millisecond
	VerticalClearMax = 900 * time.Millisecond

	// QueueLookaheadLimit caps how many pending items a single ProcessQueue
	// call may inspect. It bounds work per invocation under burst load at the
	// cost of leaving eligible-but-unscanned items waiting one extra pass.
	QueueLookaheadLimit = 10

	// RetryMinDelay and RetryMaxDelay bound the retry timer delay.
	RetryMinDelay = 50 * time.Millisecond
	RetryMaxDelay = time.Second
)

// =============================================================================
// Settings
// =============================================================================

// Default setting values.
const (
	DefaultFontSize             = 24.0
	DefaultSpeedPxPerSec        = 120.0
	DefaultMaxMessagesPerSecond = 10
	DefaultTopMarginFrac        = 0.05
	DefaultBottomMarginFrac     = 0.10
	DefaultVerticalPaddingPx    = 4.0
)

// Settings holds the user-tunable parameters of the overlay.
// The zero value is not usable; call ValidateAndSetDefaults first.
type Settings struct {
	// FontSize is the nominal glyph height in pixels. Lane height and the
	// minimum safe distance derive from it.
	FontSize float64

	// SpeedPxPerSec is the traversal speed at playback rate 1.0.
	SpeedPxPerSec float64

	// MaxMessagesPerSecond is the hard ingress cap. Messages above the cap
	// are silently discarded before queueing.
	MaxMessagesPerSecond int

	// TopMarginFrac and BottomMarginFrac are the fractions of the surface
	// height kept free of lanes.
	TopMarginFrac    float64
	BottomMarginFrac float64

	// VerticalPaddingPx is added to a footprint's height when computing how
	// many lanes it spans.
	VerticalPaddingPx float64

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults fills zero fields with defaults and rejects values
// outside the supported ranges. It is idempotent.
func (s *Settings) ValidateAndSetDefaults() error {
	if s.validated {
		return nil
	}
	if s.FontSize == 0 {
		s.FontSize = DefaultFontSize
	}
	if s.SpeedPxPerSec == 0 {
		s.SpeedPxPerSec = DefaultSpeedPxPerSec
	}
	if s.MaxMessagesPerSecond == 0 {
		s.MaxMessagesPerSecond = DefaultMaxMessagesPerSecond
	}
	if s.VerticalPaddingPx == 0 {
		s.VerticalPaddingPx = DefaultVerticalPaddingPx
	}
	if s.TopMarginFrac == 0 && s.BottomMarginFrac == 0 {
		s.TopMarginFrac = DefaultTopMarginFrac
		s.BottomMarginFrac = DefaultBottomMarginFrac
	}

	if s.FontSize < 0 {
		return errors.New(errors.ErrCodeInvalidSettings, "font size must be positive, got %g", s.FontSize)
	}
	if s.SpeedPxPerSec < 0 {
		return errors.New(errors.ErrCodeInvalidSettings, "speed must be positive, got %g", s.SpeedPxPerSec)
	}
	if s.MaxMessagesPerSecond < 0 {
		return errors.New(errors.ErrCodeInvalidSettings, "ingress cap must be positive, got %d", s.MaxMessagesPerSecond)
	}
	if s.VerticalPaddingPx < 0 {
		return errors.New(errors.ErrCodeInvalidSettings, "vertical padding must not be negative, got %g", s.VerticalPaddingPx)
	}
	if s.TopMarginFrac < 0 || s.BottomMarginFrac < 0 || s.TopMarginFrac+s.BottomMarginFrac >= 1 {
		return errors.New(errors.ErrCodeInvalidSettings,
			"margins must be non-negative and sum below 1, got top=%g bottom=%g",
			s.TopMarginFrac, s.BottomMarginFrac)
	}

	s.validated = true
	return nil
}

// MinSafeDistance returns the minimum horizontal gap enforced between
// consecutive occupants of a lane.
func (s Settings) MinSafeDistance() float64 {
	return math.Max(s.FontSize*SafeDistanceScale, SafeDistanceMin)
}

// =============================================================================
// Geometry
// =============================================================================

// Geometry describes the viewing surface as reported by the surface provider:
// overall dimensions plus the derived lane grid. Any change to it invalidates
// the overlay's lane table.
type Geometry struct {
	Width      float64
	Height     float64
	LaneHeight float64
	LaneCount  int
}

// ComputeGeometry derives the lane grid from surface dimensions and settings.
// Lane height scales with font size; the lane count is whatever fits between
// the top and bottom safe margins, but never below one.
func ComputeGeometry(width, height float64, s Settings) Geometry {
	laneHeight := s.FontSize * LaneHeightScale
	usable := height * (1 - s.TopMarginFrac - s.BottomMarginFrac)
	count := int(math.Floor(usable / laneHeight))
	if count < 1 {
		count = 1
	}
	return Geometry{Width: width, Height: height, LaneHeight: laneHeight, LaneCount: count}
}
