package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/driftlane/driftlane/pkg/overlay"
)

func newTestDemoModel(t *testing.T) *demoModel {
	t.Helper()
	m, err := newDemoModel(24, 50, false)
	if err != nil {
		t.Fatalf("newDemoModel() error = %v", err)
	}
	t.Cleanup(m.ov.Destroy)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	return m
}

// Lanes are single terminal rows, so an ordinary message must occupy exactly
// one of them; two back-to-back messages land in adjacent lanes.
func TestDemoNormalMessagesSpanOneLane(t *testing.T) {
	m := newTestDemoModel(t)

	m.ov.AddMessage(overlay.NewMessage(overlay.KindNormal, "first"))
	m.ov.AddMessage(overlay.NewMessage(overlay.KindNormal, "second"))

	byLane := m.surface.snapshot()
	if len(byLane[0]) != 1 || len(byLane[1]) != 1 {
		t.Fatalf("lane occupancy = [%d %d], want one message in lane 0 and one in lane 1",
			len(byLane[0]), len(byLane[1]))
	}
}

func TestDemoHighlightClaimsTwoLanes(t *testing.T) {
	m := newTestDemoModel(t)

	m.ov.AddMessage(overlay.NewMessage(overlay.KindHighlight, "big moment"))
	m.ov.AddMessage(overlay.NewMessage(overlay.KindNormal, "right after"))

	byLane := m.surface.snapshot()
	if len(byLane[0]) != 1 {
		t.Fatalf("lane 0 occupancy = %d, want the highlight", len(byLane[0]))
	}
	// The highlight spans lanes 0-1, so the next message starts at lane 2.
	if len(byLane[2]) != 1 {
		t.Fatalf("lane 2 occupancy = %d, want the follow-up message", len(byLane[2]))
	}
}
