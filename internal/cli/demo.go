package cli

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/driftlane/driftlane/pkg/overlay"
)

// newDemoCmd creates the demo command: a live terminal rendition of the
// overlay where lanes are terminal rows and messages drift right to left.
func newDemoCmd() *cobra.Command {
	var (
		speed  float64
		perSec int
		burst  bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Render a live flowing-comment overlay in the terminal",
		Long: `Demo feeds synthetic chat messages through the scheduler and draws the
result in the terminal. Each row is a lane; messages drift right to left and
never overlap.

Keys:
  space   pause / resume
  + / -   playback rate up / down
  c       clear the surface
  q       quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newDemoModel(speed, perSec, burst)
			if err != nil {
				return err
			}
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().Float64Var(&speed, "speed", 24, "traversal speed in cells per second")
	cmd.Flags().IntVar(&perSec, "max-per-second", 6, "ingress cap (messages per second)")
	cmd.Flags().BoolVar(&burst, "burst", false, "spawn messages in aggressive bursts")

	return cmd
}

// =============================================================================
// Terminal Render Surface
// =============================================================================

// sprite is one message visible on the terminal surface.
type sprite struct {
	id     uuid.UUID
	text   string
	kind   overlay.Kind
	lane   int
	width  int
	motion *overlay.TimedMotion
}

// termSurface implements overlay.Renderer on terminal cells. "Pixels" are
// character cells: footprints are rune widths, lanes are rows.
type termSurface struct {
	mu      sync.Mutex
	sprites map[uuid.UUID]*sprite
}

func newTermSurface() *termSurface {
	return &termSurface{sprites: make(map[uuid.UUID]*sprite)}
}

func (s *termSurface) Mount(msg overlay.Message) (overlay.RenderedMessage, error) {
	text := fmt.Sprint(msg.Payload)
	return &termRendered{
		surface: s,
		msg:     msg,
		text:    text,
		width:   lipgloss.Width(text),
	}, nil
}

func (s *termSurface) add(sp *sprite) {
	s.mu.Lock()
	s.sprites[sp.id] = sp
	s.mu.Unlock()
}

func (s *termSurface) remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sprites, id)
	s.mu.Unlock()
}

// snapshot returns the visible sprites grouped by lane.
func (s *termSurface) snapshot() map[int][]*sprite {
	s.mu.Lock()
	defer s.mu.Unlock()
	byLane := make(map[int][]*sprite, len(s.sprites))
	for _, sp := range s.sprites {
		byLane[sp.lane] = append(byLane[sp.lane], sp)
	}
	return byLane
}

// termRendered is a mounted-but-not-yet-placed message.
type termRendered struct {
	surface *termSurface
	msg     overlay.Message
	text    string
	width   int
}

func (r *termRendered) Size() (width, height float64) {
	// Highlighted messages claim an extra lane of breathing room.
	if r.msg.Kind == overlay.KindHighlight {
		return float64(r.width), 2
	}
	return float64(r.width), 1
}

func (r *termRendered) Start(p overlay.Placement, duration time.Duration, rate float64, onComplete func()) overlay.Motion {
	sp := &sprite{
		id:    r.msg.ID,
		text:  r.text,
		kind:  r.msg.Kind,
		lane:  p.LaneStart,
		width: r.width,
	}
	sp.motion = overlay.NewTimedMotion(duration, rate, func() {
		r.surface.remove(r.msg.ID)
		onComplete()
	})
	r.surface.add(sp)
	return sp.motion
}

func (r *termRendered) Discard() {
	r.surface.remove(r.msg.ID)
}

// =============================================================================
// Bubbletea Model
// =============================================================================

type tickMsg time.Time
type spawnMsg struct{}

var demoPhrases = []string{
	"hello from the other side",
	"first!",
	"this part is amazing",
	"wait what just happened",
	"lol",
	"anyone else watching in 2x?",
	"the soundtrack goes hard",
	"replay that!!",
	"greetings from the night shift",
	"no way",
	"chat is this real",
	"absolute cinema",
	"here before it blows up",
	"someone clip this",
	"bgm name please",
}

type demoModel struct {
	ov      *overlay.Overlay
	surface *termSurface

	cols int
	rows int

	rate   float64
	burst  bool
	rng    *rand.Rand
	frames int
}

func newDemoModel(speed float64, perSec int, burst bool) (*demoModel, error) {
	settings := overlay.Settings{
		FontSize:             1, // cell units
		SpeedPxPerSec:        speed,
		MaxMessagesPerSecond: perSec,
	}
	// Cells are discrete: any vertical padding would push a one-row message
	// into a second lane. Validate first so the explicit zero survives the
	// zero-means-default rule.
	if err := settings.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	settings.VerticalPaddingPx = 0
	surface := newTermSurface()
	// Geometry is installed on the first WindowSizeMsg; start with a stub.
	ov, err := overlay.New(surface, overlay.Geometry{Width: 80, Height: 24, LaneHeight: 1, LaneCount: 1}, settings)
	if err != nil {
		return nil, err
	}
	return &demoModel{
		ov:      ov,
		surface: surface,
		rate:    1.0,
		burst:   burst,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (m *demoModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.spawn())
}

func (m *demoModel) tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *demoModel) spawn() tea.Cmd {
	delay := time.Duration(200+m.rng.Intn(700)) * time.Millisecond
	if m.burst {
		delay = time.Duration(30+m.rng.Intn(120)) * time.Millisecond
	}
	return tea.Tick(delay, func(time.Time) tea.Msg { return spawnMsg{} })
}

func (m *demoModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.cols, m.rows = msg.Width, msg.Height
		lanes := m.rows - 2 // header + footer
		if lanes < 1 {
			lanes = 1
		}
		m.ov.SetGeometry(overlay.Geometry{
			Width:      float64(m.cols),
			Height:     float64(lanes),
			LaneHeight: 1,
			LaneCount:  lanes,
		})
		return m, nil

	case tickMsg:
		m.frames++
		return m, m.tick()

	case spawnMsg:
		kind := overlay.KindNormal
		switch m.rng.Intn(10) {
		case 0:
			kind = overlay.KindHighlight
		case 1:
			kind = overlay.KindSystem
		}
		m.ov.AddMessage(overlay.NewMessage(kind, demoPhrases[m.rng.Intn(len(demoPhrases))]))
		return m, m.spawn()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.ov.Destroy()
			return m, tea.Quit
		case " ":
			if m.ov.Paused() {
				m.ov.Resume()
			} else {
				m.ov.Pause()
			}
		case "+", "=":
			m.setRate(m.rate + 0.25)
		case "-":
			m.setRate(m.rate - 0.25)
		case "c":
			m.ov.Clear()
		}
		return m, nil
	}
	return m, nil
}

func (m *demoModel) setRate(rate float64) {
	if rate < 0.25 {
		rate = 0.25
	}
	if rate > 3 {
		rate = 3
	}
	m.rate = rate
	m.ov.SetPlaybackRate(rate)
}

func (m *demoModel) View() string {
	if m.cols == 0 {
		return "starting..."
	}

	lanes := m.rows - 2
	if lanes < 1 {
		lanes = 1
	}
	byLane := m.surface.snapshot()

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	for lane := 0; lane < lanes; lane++ {
		b.WriteString(m.renderLane(byLane[lane]))
		if lane < lanes-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m *demoModel) header() string {
	title := styleTitle.Render("driftlane demo")
	state := ""
	if m.ov.Paused() {
		state = "  " + stylePaused.Render("PAUSED")
	}
	return title + state + "  " + styleDim.Render(fmt.Sprintf("rate %.2fx", m.rate))
}

func (m *demoModel) footer() string {
	st := m.ov.Stats()
	stats := styleStat.Render(fmt.Sprintf(
		"active %d  pending %d  placed %d  dropped %d  limited %d",
		st.Active, st.Pending, st.Placed, st.DroppedInfeasible, st.RateLimited))
	help := styleDim.Render("space pause  +/- rate  c clear  q quit")
	return stats + "  " + help
}

// renderLane composes one terminal row from the sprites traversing it.
// The scheduler keeps sprites in a lane at least the safe distance apart, so
// segments never overlap; clipping handles the edges.
func (m *demoModel) renderLane(sprites []*sprite) string {
	if len(sprites) == 0 {
		return ""
	}

	type seg struct {
		x  int
		sp *sprite
	}
	segs := make([]seg, 0, len(sprites))
	for _, sp := range sprites {
		p := sp.motion.Progress()
		x := int(float64(m.cols) - p*float64(m.cols+sp.width))
		segs = append(segs, seg{x: x, sp: sp})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].x < segs[j].x })

	var b strings.Builder
	cursor := 0
	for _, s := range segs {
		text := []rune(s.sp.text)
		start := s.x
		if start < 0 {
			if -start >= len(text) {
				continue
			}
			text = text[-start:]
			start = 0
		}
		if start >= m.cols {
			continue
		}
		if start+len(text) > m.cols {
			text = text[:m.cols-start]
		}
		if start < cursor {
			// Overlap should not happen; drop the collided prefix.
			if start+len(text) <= cursor {
				continue
			}
			text = text[cursor-start:]
			start = cursor
		}
		b.WriteString(strings.Repeat(" ", start-cursor))
		b.WriteString(kindStyle(s.sp.kind).Render(string(text)))
		cursor = start + len(text)
	}
	return b.String()
}

func kindStyle(k overlay.Kind) lipgloss.Style {
	switch k {
	case overlay.KindHighlight:
		return styleMsgHighlight
	case overlay.KindSystem:
		return styleMsgSystem
	default:
		return styleMsgNormal
	}
}
