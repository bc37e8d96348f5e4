package server

import (
	"fmt"
	"time"
	"unicode"

	"github.com/driftlane/driftlane/pkg/overlay"
	redissource "github.com/driftlane/driftlane/pkg/source/redis"
)

// estimator is the serve-mode render surface. Real measurement happens in the
// browser overlay; the server only needs footprints good enough for lane
// arithmetic, so it estimates width from rune count and font size.
type estimator struct {
	srv      *Server
	fontSize float64
}

func (e *estimator) Mount(msg overlay.Message) (overlay.RenderedMessage, error) {
	text, author := payloadText(msg.Payload)
	return &estimated{
		srv:    e.srv,
		msg:    msg,
		text:   text,
		author: author,
		width:  estimateWidth(text, e.fontSize),
		height: e.fontSize,
	}, nil
}

// estimated is a mounted message in serve mode. Starting it broadcasts a
// "placed" event and runs a wall-clock motion so the server's lane
// bookkeeping matches what clients display.
type estimated struct {
	srv    *Server
	msg    overlay.Message
	text   string
	author string
	width  float64
	height float64
}

func (r *estimated) Size() (width, height float64) {
	return r.width, r.height
}

func (r *estimated) Start(p overlay.Placement, duration time.Duration, rate float64, onComplete func()) overlay.Motion {
	m := overlay.NewTimedMotion(duration, rate, onComplete)
	r.srv.broadcast(Event{
		Type:       EventPlaced,
		ID:         r.msg.ID.String(),
		Kind:       r.msg.Kind.String(),
		Text:       r.text,
		Author:     r.author,
		LaneStart:  p.LaneStart,
		LaneSpan:   p.LaneSpan,
		DurationMs: duration.Milliseconds(),
		Rate:       rate,
		WidthPx:    r.width,
		HeightPx:   r.height,
	})
	return m
}

func (r *estimated) Discard() {}

// payloadText extracts display text from the known payload shapes.
func payloadText(payload any) (text, author string) {
	switch p := payload.(type) {
	case string:
		return p, ""
	case redissource.ChatPayload:
		return p.Text, p.Author
	case ingestPayload:
		return p.Text, p.Author
	default:
		return fmt.Sprint(payload), ""
	}
}

// estimateWidth approximates rendered width: wide (CJK) runes take a full em,
// everything else roughly six tenths.
func estimateWidth(text string, fontSize float64) float64 {
	var w float64
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hangul, r) ||
			unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) {
			w += fontSize
		} else {
			w += fontSize * 0.6
		}
	}
	return w
}
