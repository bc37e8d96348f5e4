package server

// Event types broadcast on the websocket feed.
const (
	EventPlaced  = "placed"
	EventExpired = "expired"
	EventCleared = "cleared"
)

// Event is the wire format of the placement feed. Overlay clients replay
// these to animate messages: a "placed" event carries everything needed to
// start a traversal, "expired" confirms natural completion, "cleared" tells
// clients to wipe the surface.
type Event struct {
	Type       string  `json:"type"`
	ID         string  `json:"id,omitempty"`
	Kind       string  `json:"kind,omitempty"`
	Text       string  `json:"text,omitempty"`
	Author     string  `json:"author,omitempty"`
	LaneStart  int     `json:"lane_start,omitempty"`
	LaneSpan   int     `json:"lane_span,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
	WidthPx    float64 `json:"width_px,omitempty"`
	HeightPx   float64 `json:"height_px,omitempty"`
}
